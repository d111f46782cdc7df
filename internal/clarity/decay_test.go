package clarity

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/easeaico/mirror-clarity/internal/types"
)

func TestNegativeFeedbackDecaysTraits(t *testing.T) {
	p := types.NewClarityProfile("u1", time.Now())
	if _, err := ApplyInput(p, CategoryRant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ApplyNegativeFeedback(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bold := p.Traits[types.TraitBoldness]
	if bold.XP != 28 || math.Abs(bold.Score-52.8) > 1e-9 {
		t.Fatalf("unexpected boldness: %#v", bold)
	}
	humor := p.Traits[types.TraitHumor]
	if humor.XP != 0 || math.Abs(humor.Score-49.8) > 1e-9 {
		t.Fatalf("unexpected humor: %#v", humor)
	}
	if p.NegativeFeedbackCount != 1 {
		t.Fatalf("expected count 1, got %d", p.NegativeFeedbackCount)
	}
}

func TestNegativeFeedbackNeverGoesBelowZero(t *testing.T) {
	p := types.NewClarityProfile("u1", time.Now())
	for name, tr := range p.Traits {
		tr.Score = 0.1
		tr.XP = 1
		p.Traits[name] = tr
	}
	if _, err := ApplyNegativeFeedback(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name, tr := range p.Traits {
		if tr.Score != 0 || tr.XP != 0 {
			t.Fatalf("trait %s not floored: %#v", name, tr)
		}
	}
}

func TestRecalibrationRecommendedAfterSix(t *testing.T) {
	p := types.NewClarityProfile("u1", time.Now())
	for i := 1; i <= 6; i++ {
		recommended, err := ApplyNegativeFeedback(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if recommended != (i >= 6) {
			t.Fatalf("call %d: recommended=%v", i, recommended)
		}
	}
	if p.NegativeFeedbackCount != 6 || !RecalibrationRecommended(p) {
		t.Fatalf("expected count 6 and flag set, got %d", p.NegativeFeedbackCount)
	}

	recommended, err := ApplyNegativeFeedback(p)
	if err != nil || !recommended || p.NegativeFeedbackCount != 7 {
		t.Fatalf("seventh call must keep the flag: %v %v %d", recommended, err, p.NegativeFeedbackCount)
	}
}

func TestDecayLeavesLevelAlone(t *testing.T) {
	p := types.NewClarityProfile("u1", time.Now())
	if _, err := AddXP(p, 250, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := ApplyNegativeFeedback(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if p.Level != 2 || p.TotalXP != 250 {
		t.Fatalf("decay changed level state: level=%d total=%d", p.Level, p.TotalXP)
	}
}

func TestRecalibrate(t *testing.T) {
	p := types.NewClarityProfile("u1", time.Now())
	if _, _, err := AssignArchetype(p, []Answer{{Archetypes: []Archetype{ArchetypeRenegade}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ApplyInput(p, CategoryFlirt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := AddXP(p, 300, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 6; i++ {
		if _, err := ApplyNegativeFeedback(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := Recalibrate(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Archetype != "" || p.ArchetypeMeta != (types.ArchetypeMeta{}) {
		t.Fatalf("archetype not cleared: %q", p.Archetype)
	}
	if p.NegativeFeedbackCount != 0 || RecalibrationRecommended(p) {
		t.Fatalf("feedback count not cleared")
	}
	for _, name := range types.TraitNames {
		if tr := p.Traits[name]; tr.Score != types.DefaultTraitScore || tr.XP != 0 {
			t.Fatalf("trait %s not reset: %#v", name, tr)
		}
	}
	if p.Level != 2 || p.TotalXP != 300 {
		t.Fatalf("recalibrate must keep level state: level=%d total=%d", p.Level, p.TotalXP)
	}
	if err := Ready(p); !errors.Is(err, types.ErrProfileNotInitialized) {
		t.Fatalf("expected profile to need the quiz again, got %v", err)
	}
}
