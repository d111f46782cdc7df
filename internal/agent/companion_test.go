package agent

import (
	"context"
	"iter"
	"strings"
	"sync"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/mirror-clarity/internal/clarity"
	"github.com/easeaico/mirror-clarity/internal/memory"
	"github.com/easeaico/mirror-clarity/internal/storage"
	"github.com/easeaico/mirror-clarity/internal/utils"
)

type recordingLLM struct {
	mu           sync.Mutex
	reply        string
	instructions []string
}

func (f *recordingLLM) Name() string { return "fake" }

func (f *recordingLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	f.mu.Lock()
	instruction := ""
	if req.Config != nil {
		instruction = utils.ExtractContentText(req.Config.SystemInstruction)
	}
	f.instructions = append(f.instructions, instruction)
	f.mu.Unlock()

	return func(yield func(*model.LLMResponse, error) bool) {
		yield(&model.LLMResponse{
			Content:      genai.NewContentFromText(f.reply, genai.RoleModel),
			TurnComplete: true,
		}, nil)
	}
}

func (f *recordingLLM) lastInstruction() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.instructions) == 0 {
		return ""
	}
	return f.instructions[len(f.instructions)-1]
}

func newTestCompanion(t *testing.T, llm model.LLM) (*Companion, *clarity.Service) {
	t.Helper()
	db, err := storage.Open("", true)
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := memory.NewStore(db.Memories(), memory.NewHashEmbedder(64))
	svc := clarity.NewService(db.Profiles(), clarity.WithMemories(store))
	c, err := NewCompanion(CompanionConfig{
		Model:      llm,
		Service:    svc,
		Memory:     memory.NewADKService(store, 3),
		MaxEntries: 3,
	})
	if err != nil {
		t.Fatalf("NewCompanion returned error: %v", err)
	}
	return c, svc
}

func TestCompanionFeedsTurnsIntoProfile(t *testing.T) {
	ctx := context.Background()
	llm := &recordingLLM{reply: "That sounds grounding."}
	c, svc := newTestCompanion(t, llm)

	if _, err := svc.TakeQuiz(ctx, "u1", []int{0, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("TakeQuiz returned error: %v", err)
	}

	reply, err := c.Reply(ctx, "u1", "s1", "I went hiking in the mountains")
	if err != nil {
		t.Fatalf("Reply returned error: %v", err)
	}
	if reply != "That sounds grounding." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got := llm.lastInstruction(); !strings.Contains(got, "<USER_PROFILE>") {
		t.Fatalf("expected profile block in instruction:\n%s", got)
	}

	p, err := svc.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}
	if p.TotalXP == 0 {
		t.Fatal("expected chat turn to grant xp")
	}

	if _, err := c.Reply(ctx, "u1", "s1", "hiking again this weekend"); err != nil {
		t.Fatalf("second Reply returned error: %v", err)
	}
	if got := llm.lastInstruction(); !strings.Contains(got, "I went hiking in the mountains") {
		t.Fatalf("expected recalled memory in instruction:\n%s", got)
	}
}

func TestCompanionSkipsObservationBeforeQuiz(t *testing.T) {
	ctx := context.Background()
	llm := &recordingLLM{reply: "Hello there."}
	c, svc := newTestCompanion(t, llm)

	if _, err := c.Reply(ctx, "fresh", "s1", "hi"); err != nil {
		t.Fatalf("Reply returned error: %v", err)
	}
	if strings.Contains(llm.lastInstruction(), "<USER_PROFILE>") {
		t.Fatal("unclassified users should not get a profile block")
	}
	recalled, err := svc.Recall(ctx, "fresh", "hi", 3)
	if err != nil {
		t.Fatalf("Recall returned error: %v", err)
	}
	if len(recalled) != 0 {
		t.Fatalf("expected no memories before quiz, got %d", len(recalled))
	}
}

func TestCompanionRejectsEmptyMessage(t *testing.T) {
	c, _ := newTestCompanion(t, &recordingLLM{reply: "x"})
	if _, err := c.Reply(context.Background(), "u1", "s1", "  "); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestNewCompanionRequiresModel(t *testing.T) {
	if _, err := NewCompanion(CompanionConfig{}); err == nil {
		t.Fatal("expected error without model")
	}
}
