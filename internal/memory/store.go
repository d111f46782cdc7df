package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/easeaico/mirror-clarity/internal/metrics"
	"github.com/easeaico/mirror-clarity/internal/types"
)

// RecordRepo persists memory records keyed by (user id, content id).
type RecordRepo interface {
	// Insert stores rec unless a record with the same key exists. It returns
	// the stored record and whether this call created it.
	Insert(ctx context.Context, rec types.MemoryRecord) (types.MemoryRecord, bool, error)
	// Find returns nil, nil when the record does not exist.
	Find(ctx context.Context, userID, id string) (*types.MemoryRecord, error)
	ListByUser(ctx context.Context, userID string) ([]types.MemoryRecord, error)
}

// Searcher is implemented by repos that rank records next to the data, such as
// a pgvector index. The ordering must match Rank.
type Searcher interface {
	CountByUser(ctx context.Context, userID string) (int64, error)
	SearchSimilar(ctx context.Context, userID string, query []float32, topN int) ([]types.ScoredMemory, error)
}

// Store is the vector memory store. Records are append-only and idempotent per
// user and content hash.
type Store struct {
	repo     RecordRepo
	embedder Embedder
	metrics  *metrics.Metrics
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store over repo and embedder.
func NewStore(repo RecordRepo, embedder Embedder, opts ...StoreOption) *Store {
	s := &Store{
		repo:     repo,
		embedder: embedder,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store embeds and appends text for userID. Storing the same text twice returns
// the existing record without calling the embedder.
func (s *Store) Store(ctx context.Context, userID, text string, source types.MemorySource) (types.MemoryRecord, error) {
	userID = strings.TrimSpace(userID)
	text = strings.TrimSpace(text)
	if userID == "" {
		return types.MemoryRecord{}, fmt.Errorf("%w: empty user id", types.ErrInvalidArgument)
	}
	if text == "" {
		return types.MemoryRecord{}, fmt.Errorf("%w: empty text", types.ErrInvalidArgument)
	}
	if _, err := types.ParseMemorySource(string(source)); err != nil {
		return types.MemoryRecord{}, err
	}

	id := types.ContentID(text)
	existing, err := s.repo.Find(ctx, userID, id)
	if err != nil {
		return types.MemoryRecord{}, fmt.Errorf("failed to find memory: %w", err)
	}
	if existing != nil {
		s.metrics.RecordMemoryStore(string(source), "existing")
		return *existing, nil
	}

	vec, err := s.embed(ctx, text, s.embedder.EmbedDocument)
	if err != nil {
		s.metrics.RecordMemoryStore(string(source), "error")
		return types.MemoryRecord{}, err
	}

	stored, inserted, err := s.repo.Insert(ctx, types.MemoryRecord{
		ID:        id,
		UserID:    userID,
		Text:      text,
		Embedding: vec,
		Source:    source,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.metrics.RecordMemoryStore(string(source), "error")
		return types.MemoryRecord{}, fmt.Errorf("failed to insert memory: %w", err)
	}
	if inserted {
		s.metrics.RecordMemoryStore(string(source), "created")
	} else {
		s.metrics.RecordMemoryStore(string(source), "existing")
		slog.Debug("memory insert lost race, using existing record", "user_id", userID, "id", id)
	}
	return stored, nil
}

// Query returns the texts of the topN memories most similar to text.
func (s *Store) Query(ctx context.Context, userID, text string, topN int) ([]string, error) {
	scored, err := s.QueryRecords(ctx, userID, text, topN)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(scored))
	for _, m := range scored {
		out = append(out, m.Text)
	}
	return out, nil
}

// QueryRecords is Query with scores and record metadata. A user without
// records gets an empty slice and no embedding call is made.
func (s *Store) QueryRecords(ctx context.Context, userID, text string, topN int) ([]types.ScoredMemory, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: topN must be positive, got %d", types.ErrInvalidArgument, topN)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", types.ErrInvalidArgument)
	}

	if searcher, ok := s.repo.(Searcher); ok {
		return s.search(ctx, searcher, userID, text, topN)
	}

	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	s.metrics.RecordMemoryQuery()
	if len(records) == 0 {
		return []types.ScoredMemory{}, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query text", types.ErrInvalidArgument)
	}

	vec, err := s.embed(ctx, text, s.embedder.EmbedQuery)
	if err != nil {
		return nil, err
	}
	return Rank(records, userID, vec, topN), nil
}

// List returns the user's records newest first. An empty source matches every
// source; limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, userID string, source types.MemorySource, limit int) ([]types.MemoryRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", types.ErrInvalidArgument)
	}
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	out := make([]types.MemoryRecord, 0, len(records))
	for _, rec := range records {
		if rec.UserID != userID || (source != "" && rec.Source != source) {
			continue
		}
		rec.Embedding = nil
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) search(ctx context.Context, searcher Searcher, userID, text string, topN int) ([]types.ScoredMemory, error) {
	count, err := searcher.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count memories: %w", err)
	}
	s.metrics.RecordMemoryQuery()
	if count == 0 {
		return []types.ScoredMemory{}, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query text", types.ErrInvalidArgument)
	}

	vec, err := s.embed(ctx, text, s.embedder.EmbedQuery)
	if err != nil {
		return nil, err
	}
	scored, err := searcher.SearchSimilar(ctx, userID, vec, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	if scored == nil {
		scored = []types.ScoredMemory{}
	}
	return scored, nil
}

func (s *Store) embed(ctx context.Context, text string, fn func(context.Context, string) ([]float32, error)) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", types.ErrEmbeddingUnavailable)
	}
	start := time.Now()
	vec, err := fn(ctx, text)
	s.metrics.ObserveEmbedding(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", types.ErrEmbeddingUnavailable)
	}
	if isZero(vec) {
		return nil, fmt.Errorf("%w: zero embedding", types.ErrEmbeddingUnavailable)
	}
	return vec, nil
}

// isZero reports whether vec has no direction. Cosine similarity is undefined
// for it.
func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
