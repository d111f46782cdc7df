package clarity

import (
	"reflect"
	"testing"
	"time"

	"github.com/easeaico/mirror-clarity/internal/types"
)

func TestToneTagsAboveThreshold(t *testing.T) {
	p := types.NewClarityProfile("u1", time.Now())
	set := func(name types.TraitName, score float64) {
		tr := p.Traits[name]
		tr.Score = score
		p.Traits[name] = tr
	}
	set(types.TraitEmpathy, 61)
	set(types.TraitHumor, 80)
	set(types.TraitLogic, 60)

	got := ToneTags(p)
	want := []string{"witty", "emotionally intelligent"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNewPromptContext(t *testing.T) {
	p := types.NewClarityProfile("u1", time.Now())
	if _, _, err := AssignArchetype(p, []Answer{{Archetypes: []Archetype{ArchetypeHeartbeat}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pc := NewPromptContext(p, nil)
	if pc.Archetype != "Heartbeat" || pc.Emoji != "💗" || pc.Stage != "Shell" {
		t.Fatalf("unexpected prompt context: %#v", pc)
	}
	if pc.Memories == nil || pc.ToneTags == nil {
		t.Fatalf("expected empty, non-nil slices")
	}
}
