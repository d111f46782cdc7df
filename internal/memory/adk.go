package memory

import (
	"context"
	"fmt"
	"strings"

	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/easeaico/mirror-clarity/internal/types"
	"github.com/easeaico/mirror-clarity/internal/utils"
)

// adkService exposes a Store as an ADK memory.Service so agents can load
// clarity memories through the standard memory tools.
type adkService struct {
	store *Store
	topN  int
}

// NewADKService returns an ADK memory service backed by store.
func NewADKService(store *Store, topN int) adkmemory.Service {
	if topN <= 0 {
		topN = 3
	}
	return &adkService{store: store, topN: topN}
}

// AddSession stores every user-authored text event as a chat memory.
// Repeated sessions are safe because storing is idempotent.
func (s *adkService) AddSession(ctx context.Context, sess session.Session) error {
	if sess == nil {
		return fmt.Errorf("session is nil")
	}
	for event := range sess.Events().All() {
		if event == nil || event.Content == nil || event.Content.Role != string(genai.RoleUser) {
			continue
		}
		text := strings.TrimSpace(utils.ExtractContentText(event.Content))
		if text == "" {
			continue
		}
		if _, err := s.store.Store(ctx, sess.UserID(), text, types.MemorySourceChat); err != nil {
			return fmt.Errorf("failed to add session memory: %w", err)
		}
	}
	return nil
}

func (s *adkService) Search(ctx context.Context, req *adkmemory.SearchRequest) (*adkmemory.SearchResponse, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return &adkmemory.SearchResponse{Memories: nil}, nil
	}

	scored, err := s.store.QueryRecords(ctx, req.UserID, req.Query, s.topN)
	if err != nil {
		return nil, err
	}
	return &adkmemory.SearchResponse{Memories: ToMemoryEntries(scored)}, nil
}

// ToMemoryEntries converts ranked memories into ADK entries authored by the user.
func ToMemoryEntries(memories []types.ScoredMemory) []adkmemory.Entry {
	if len(memories) == 0 {
		return nil
	}
	results := make([]adkmemory.Entry, 0, len(memories))
	for _, m := range memories {
		results = append(results, adkmemory.Entry{
			Content:   genai.NewContentFromText(m.Text, genai.RoleUser),
			Author:    string(genai.RoleUser),
			Timestamp: m.CreatedAt,
		})
	}
	return results
}
