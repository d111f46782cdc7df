package memory

import (
	"context"
	"iter"
	"testing"
	"time"

	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/easeaico/mirror-clarity/internal/types"
)

func TestADKServiceAddSessionStoresUserTurns(t *testing.T) {
	repo := newFakeRecordRepo()
	store := NewStore(repo, NewHashEmbedder(64))
	svc := NewADKService(store, 3)

	sess := newMockSession("user-1", "app-1", []sessionEvent{
		{role: string(genai.RoleUser), text: "I finally finished the marathon"},
		{role: string(genai.RoleModel), text: "That is huge, congratulations!"},
		{role: string(genai.RoleUser), text: "   "},
		{role: string(genai.RoleUser), text: "my knees hurt though"},
	})

	if err := svc.AddSession(context.Background(), sess); err != nil {
		t.Fatalf("AddSession returned error: %v", err)
	}
	if err := svc.AddSession(context.Background(), sess); err != nil {
		t.Fatalf("second AddSession returned error: %v", err)
	}

	records, _ := repo.ListByUser(context.Background(), "user-1")
	if len(records) != 2 {
		t.Fatalf("expected 2 user memories, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Source != types.MemorySourceChat {
			t.Fatalf("expected chat source, got %s", rec.Source)
		}
	}
}

func TestADKServiceSearchReturnsMemories(t *testing.T) {
	repo := newFakeRecordRepo()
	store := NewStore(repo, NewHashEmbedder(128))
	ctx := context.Background()
	for _, text := range []string{"my sister lives in Lisbon", "I hate mornings"} {
		if _, err := store.Store(ctx, "user-1", text, types.MemorySourceChat); err != nil {
			t.Fatalf("Store returned error: %v", err)
		}
	}
	svc := NewADKService(store, 1)

	resp, err := svc.Search(ctx, &adkmemory.SearchRequest{
		Query:   "where does my sister live?",
		UserID:  "user-1",
		AppName: "app-1",
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if resp == nil || len(resp.Memories) != 1 {
		t.Fatalf("expected one memory entry, got %#v", resp)
	}
	entry := resp.Memories[0]
	if entry.Author != "user" {
		t.Fatalf("expected author user, got %q", entry.Author)
	}
	if entry.Content == nil || len(entry.Content.Parts) == 0 || entry.Content.Parts[0].Text != "my sister lives in Lisbon" {
		t.Fatalf("unexpected entry content: %+v", entry.Content)
	}

	empty, err := svc.Search(ctx, &adkmemory.SearchRequest{UserID: "user-1"})
	if err != nil || len(empty.Memories) != 0 {
		t.Fatalf("expected no memories for empty query, got %#v %v", empty, err)
	}
}

func newMockSession(userID, appName string, events []sessionEvent) session.Session {
	evtList := make([]*session.Event, 0, len(events))
	for _, e := range events {
		evtList = append(evtList, &session.Event{
			LLMResponse: model.LLMResponse{
				Content: genai.NewContentFromText(e.text, genai.Role(e.role)),
			},
		})
	}
	return &mockSession{
		id:     "session-1",
		app:    appName,
		user:   userID,
		state:  &mockState{data: map[string]any{}},
		events: &mockEvents{events: evtList},
	}
}

type sessionEvent struct {
	role string
	text string
}

type mockSession struct {
	id     string
	app    string
	user   string
	state  *mockState
	events *mockEvents
}

func (m *mockSession) ID() string                { return m.id }
func (m *mockSession) AppName() string           { return m.app }
func (m *mockSession) UserID() string            { return m.user }
func (m *mockSession) State() session.State      { return m.state }
func (m *mockSession) Events() session.Events    { return m.events }
func (m *mockSession) LastUpdateTime() time.Time { return time.Now() }

var _ session.Session = (*mockSession)(nil)

type mockState struct {
	data map[string]any
}

func (m *mockState) Get(key string) (any, error) {
	val, ok := m.data[key]
	if !ok {
		return nil, session.ErrStateKeyNotExist
	}
	return val, nil
}

func (m *mockState) Set(key string, value any) error {
	m.data[key] = value
	return nil
}

func (m *mockState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for k, v := range m.data {
			if !yield(k, v) {
				return
			}
		}
	}
}

var _ session.State = (*mockState)(nil)

type mockEvents struct {
	events []*session.Event
}

func (m *mockEvents) All() iter.Seq[*session.Event] {
	return func(yield func(*session.Event) bool) {
		for _, evt := range m.events {
			if !yield(evt) {
				return
			}
		}
	}
}

func (m *mockEvents) Len() int {
	return len(m.events)
}

func (m *mockEvents) At(i int) *session.Event {
	return m.events[i]
}

var _ session.Events = (*mockEvents)(nil)
