package types

import (
	"errors"
	"testing"
	"time"
)

func TestNewClarityProfileDefaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewClarityProfile("u1", now)

	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}
	if p.Level != 0 || p.TotalXP != 0 || p.XPToNextLevel != FirstLevelXP {
		t.Fatalf("unexpected level state: %+v", p)
	}
	for _, name := range TraitNames {
		tr := p.Traits[name]
		if tr.Score != DefaultTraitScore || tr.XP != 0 {
			t.Fatalf("trait %s not at defaults: %+v", name, tr)
		}
	}
	if p.Archetype != "" {
		t.Fatalf("expected no archetype, got %q", p.Archetype)
	}
}

func TestValidateRejectsMissingTrait(t *testing.T) {
	p := NewClarityProfile("u1", time.Now())
	delete(p.Traits, TraitDepth)
	if err := p.Validate(); !errors.Is(err, ErrProfileNotInitialized) {
		t.Fatalf("expected ErrProfileNotInitialized, got %v", err)
	}

	var nilProfile *ClarityProfile
	if err := nilProfile.Validate(); !errors.Is(err, ErrProfileNotInitialized) {
		t.Fatalf("expected ErrProfileNotInitialized for nil profile, got %v", err)
	}
}

func TestValidateRejectsForeignTrait(t *testing.T) {
	p := NewClarityProfile("u1", time.Now())
	delete(p.Traits, TraitDepth)
	p.Traits["charm"] = Trait{Name: "charm", Score: 50}
	if err := p.Validate(); !errors.Is(err, ErrProfileNotInitialized) {
		t.Fatalf("expected ErrProfileNotInitialized, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := NewClarityProfile("u1", time.Now())
	p.LevelHistory[1] = time.Now()
	c := p.Clone()

	tr := c.Traits[TraitHumor]
	tr.Score = 99
	c.Traits[TraitHumor] = tr
	delete(c.LevelHistory, 1)

	if p.Traits[TraitHumor].Score != DefaultTraitScore {
		t.Fatalf("clone shares trait map")
	}
	if _, ok := p.LevelHistory[1]; !ok {
		t.Fatalf("clone shares level history")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	p := NewClarityProfile("u1", time.Now())
	p.Archetype = "Oracle"
	p.TotalXP = 500
	p.Level = 3
	p.NegativeFeedbackCount = 4
	p.Version = 7
	p.Reset(time.Now())

	if p.Archetype != "" || p.TotalXP != 0 || p.Level != 0 || p.NegativeFeedbackCount != 0 {
		t.Fatalf("reset left state behind: %+v", p)
	}
	if p.Version != 7 {
		t.Fatalf("reset must not touch version, got %d", p.Version)
	}
}

func TestContentIDAndSource(t *testing.T) {
	if ContentID("hello") != ContentID("  hello \n") {
		t.Fatalf("content id should ignore surrounding whitespace")
	}
	if ContentID("hello") == ContentID("Hello") {
		t.Fatalf("content id should be case sensitive")
	}
	if _, err := ParseMemorySource("voice_journal"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseMemorySource("email"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSnapshotAppendsAndCaps(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewClarityProfile("u1", now)
	tr := p.Traits[TraitDepth]
	tr.Score = 72
	p.Traits[TraitDepth] = tr
	p.TotalXP = 40

	p.Snapshot("journal", now)
	if len(p.History) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(p.History))
	}
	got := p.History[0]
	if got.Source != "journal" || got.TotalXP != 40 || got.Scores[TraitDepth] != 72 || !got.At.Equal(now) {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	for i := 0; i < MaxHistory+5; i++ {
		p.Snapshot("chat", now.Add(time.Duration(i+1)*time.Minute))
	}
	if len(p.History) != MaxHistory {
		t.Fatalf("expected history capped at %d, got %d", MaxHistory, len(p.History))
	}
	if p.History[0].Source != "chat" {
		t.Fatalf("expected oldest entries dropped, first is %q", p.History[0].Source)
	}
}

func TestResetKeepsHistory(t *testing.T) {
	now := time.Now()
	p := NewClarityProfile("u1", now)
	p.Snapshot("chat", now)
	c := p.Clone()
	c.Snapshot("journal", now)
	if len(p.History) != 1 {
		t.Fatalf("clone shares history backing array")
	}

	p.Reset(now)
	if len(p.History) != 1 {
		t.Fatalf("reset dropped history")
	}
}
