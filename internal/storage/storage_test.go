package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeaico/mirror-clarity/internal/clarity"
	"github.com/easeaico/mirror-clarity/internal/memory"
	"github.com/easeaico/mirror-clarity/internal/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestProfileRepo_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Profiles()

	_, err := repo.Get(ctx, "u1")
	require.ErrorIs(t, err, types.ErrProfileNotFound)

	p := types.NewClarityProfile("u1", time.Unix(100, 0).UTC())
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, int64(1), p.Version)

	err = repo.Create(ctx, types.NewClarityProfile("u1", time.Now()))
	require.ErrorIs(t, err, types.ErrConflict)

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Len(t, got.Traits, len(types.TraitNames))

	got.TotalXP = 40
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	stale := p.Clone()
	stale.TotalXP = 999
	err = repo.Update(ctx, stale)
	require.ErrorIs(t, err, types.ErrConflict)

	final, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, final.TotalXP)
	assert.Equal(t, int64(2), final.Version)
}

func TestProfileRepo_UpdateMissing(t *testing.T) {
	repo := openTestDB(t).Profiles()
	err := repo.Update(context.Background(), types.NewClarityProfile("ghost", time.Now()))
	require.ErrorIs(t, err, types.ErrProfileNotFound)
}

func TestProfileRepo_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(dir, false)
	require.NoError(t, err)
	p := types.NewClarityProfile("u1", time.Now())
	p.Archetype = "Strategist"
	require.NoError(t, db.Profiles().Create(ctx, p))
	require.NoError(t, db.Close())

	db, err = Open(dir, false)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Profiles().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Strategist", got.Archetype)
}

func TestMemoryRepo_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Memories()

	rec := types.MemoryRecord{
		ID:        types.ContentID("hello"),
		UserID:    "u1",
		Text:      "hello",
		Embedding: []float32{1, 0},
		Source:    types.MemorySourceChat,
		CreatedAt: time.Unix(10, 0).UTC(),
	}
	stored, inserted, err := repo.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, rec.ID, stored.ID)

	dup := rec
	dup.CreatedAt = time.Unix(20, 0).UTC()
	stored, inserted, err = repo.Insert(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.True(t, stored.CreatedAt.Equal(rec.CreatedAt))
	assert.Equal(t, []float32{1, 0}, stored.Embedding)

	found, err := repo.Find(ctx, "u1", rec.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "hello", found.Text)

	missing, err := repo.Find(ctx, "u2", rec.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryRepo_ListByUserIsScoped(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Memories()

	for i, item := range []struct{ user, text string }{
		{"a", "first"},
		{"a:b", "colon user"},
		{"a", "second"},
		{"c", "other"},
	} {
		_, _, err := repo.Insert(ctx, types.MemoryRecord{
			ID:        types.ContentID(item.text),
			UserID:    item.user,
			Text:      item.text,
			Source:    types.MemorySourceJournal,
			CreatedAt: time.Unix(int64(i), 0).UTC(),
		})
		require.NoError(t, err)
	}

	records, err := repo.ListByUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Text)
	assert.Equal(t, "second", records[1].Text)

	none, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryRepo_ConcurrentInsertSameContent(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Memories()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.Insert(ctx, types.MemoryRecord{
				ID:     types.ContentID("same"),
				UserID: "u1",
				Text:   "same",
				Source: types.MemorySourceChat,
			})
			if err != nil && !errors.Is(err, types.ErrConflict) {
				t.Errorf("insert: %v", err)
				return
			}
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	records, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestService_OverBadger(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := memory.NewStore(db.Memories(), memory.NewHashEmbedder(64))
	svc := clarity.NewService(db.Profiles(), clarity.WithMemories(store))

	_, err := svc.TakeQuiz(ctx, "u1", []int{0, 0, 0, 0, 0, 0})
	require.NoError(t, err)

	obs, err := svc.Observe(ctx, "u1", "I walked by the river and thought about my sister", types.MemorySourceJournal)
	require.NoError(t, err)
	assert.Empty(t, obs.Memories)
	assert.Equal(t, 60, obs.GrantedXP)

	obs, err = svc.Observe(ctx, "u1", "my sister called about the river trip", types.MemorySourceChat)
	require.NoError(t, err)
	require.Len(t, obs.Memories, 1)

	p, err := db.Profiles().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, obs.Profile.TotalXP, p.TotalXP)
	assert.Equal(t, obs.Profile.Version, p.Version)
}

func TestJournalRepo_ListNewestFirstAndScoped(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t).Journal()
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Append(ctx, types.JournalEntry{
			ID:          id,
			UserID:      "u1",
			Source:      types.MemorySourceJournal,
			Text:        "entry " + id,
			Reflection:  "noted " + id,
			Adjustments: map[types.TraitName]float64{types.TraitDepth: float64(i)},
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Append(ctx, types.JournalEntry{ID: "x", UserID: "u1:other", CreatedAt: base.Add(time.Hour)}))

	entries, err := repo.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, "noted c", entries[0].Reflection)
	assert.Equal(t, 2.0, entries[0].Adjustments[types.TraitDepth])

	limited, err := repo.List(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "c", limited[0].ID)

	empty, err := repo.List(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestJournalRepo_RejectsMissingIdentity(t *testing.T) {
	repo := openTestDB(t).Journal()
	err := repo.Append(context.Background(), types.JournalEntry{UserID: "u1"})
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

type stubClassifier struct {
	signal clarity.Signal
}

func (c stubClassifier) Analyze(ctx context.Context, text string) (clarity.Signal, error) {
	return c.signal, nil
}

func TestService_HistoryAndJournalOverBadger(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := memory.NewStore(db.Memories(), memory.NewHashEmbedder(64))
	classifier := stubClassifier{signal: clarity.Signal{
		Adjustments: map[types.TraitName]float64{types.TraitDepth: 1},
		Reflection:  "you sound settled",
	}}
	svc := clarity.NewService(db.Profiles(),
		clarity.WithMemories(store),
		clarity.WithClassifier(classifier),
		clarity.WithJournal(db.Journal()),
	)

	_, err := svc.TakeQuiz(ctx, "u1", []int{0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	_, err = svc.Observe(ctx, "u1", "coffee with an old friend", types.MemorySourceChat)
	require.NoError(t, err)
	out, err := svc.Reflect(ctx, "u1", "I feel calmer this week", types.MemorySourceJournal)
	require.NoError(t, err)
	require.NotNil(t, out.Entry)

	stored, err := db.Profiles().Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored.History, 3)
	assert.Equal(t, "quiz", stored.History[0].Source)
	assert.Equal(t, "chat", stored.History[1].Source)
	assert.Equal(t, "journal", stored.History[2].Source)
	assert.Equal(t, stored.TotalXP, stored.History[2].TotalXP)

	entries, err := svc.Journal(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "you sound settled", entries[0].Reflection)
	assert.Equal(t, 1.0, entries[0].Adjustments[types.TraitDepth])

	journals, err := svc.Memories(ctx, "u1", types.MemorySourceJournal, 0)
	require.NoError(t, err)
	require.Len(t, journals, 1)
	assert.Equal(t, "I feel calmer this week", journals[0].Text)
}
