package types

import (
	"fmt"
	"time"
)

// TraitName identifies one of the fixed personality dimensions.
type TraitName string

const (
	TraitHumor        TraitName = "humor"
	TraitEmpathy      TraitName = "empathy"
	TraitAmbition     TraitName = "ambition"
	TraitFlirtiness   TraitName = "flirtiness"
	TraitLogic        TraitName = "logic"
	TraitBoldness     TraitName = "boldness"
	TraitMemory       TraitName = "memory"
	TraitDepth        TraitName = "depth"
	TraitAdaptability TraitName = "adaptability"
)

// TraitNames is the canonical trait order. Iteration over traits always follows it.
var TraitNames = []TraitName{
	TraitHumor,
	TraitEmpathy,
	TraitAmbition,
	TraitFlirtiness,
	TraitLogic,
	TraitBoldness,
	TraitMemory,
	TraitDepth,
	TraitAdaptability,
}

const (
	// DefaultTraitScore is the score every trait starts from.
	DefaultTraitScore = 50.0
	MinTraitScore     = 0.0
	MaxTraitScore     = 100.0
)

// ParseTraitName reports whether name is one of the fixed traits.
func ParseTraitName(name string) (TraitName, bool) {
	for _, t := range TraitNames {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// Trait is a bounded score with accumulated experience.
type Trait struct {
	Name  TraitName `json:"name"`
	Score float64   `json:"score"`
	XP    int       `json:"xp"`
}

// ArchetypeMeta is the static metadata copied onto a profile when an archetype is assigned.
type ArchetypeMeta struct {
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
}

// ClarityProfile is the per-user personality state.
type ClarityProfile struct {
	UserID        string              `json:"user_id"`
	Archetype     string              `json:"archetype,omitempty"`
	ArchetypeMeta ArchetypeMeta       `json:"archetype_meta"`
	Traits        map[TraitName]Trait `json:"traits"`
	TotalXP       int                 `json:"total_xp"`
	Level         int                 `json:"level"`
	XPToNextLevel int                 `json:"xp_to_next_level"`
	LevelHistory  map[int]time.Time   `json:"level_history"`
	// NegativeFeedbackCount is only cleared by recalibration.
	NegativeFeedbackCount int `json:"negative_feedback_count"`
	// History is the clarity timeline, oldest first, capped at MaxHistory.
	// Reset and Recalibrate keep it.
	History   []ClaritySnapshot `json:"history,omitempty"`
	Version   int64             `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// MaxHistory bounds the snapshots kept per profile.
const MaxHistory = 200

// ClaritySnapshot records the trait scores after one change to the profile.
type ClaritySnapshot struct {
	At      time.Time             `json:"at"`
	Source  string                `json:"source"`
	Level   int                   `json:"level"`
	TotalXP int                   `json:"total_xp"`
	Scores  map[TraitName]float64 `json:"scores"`
}

// Snapshot appends the current state to History, dropping the oldest entries
// beyond MaxHistory.
func (p *ClarityProfile) Snapshot(source string, now time.Time) {
	scores := make(map[TraitName]float64, len(p.Traits))
	for name, t := range p.Traits {
		scores[name] = t.Score
	}
	p.History = append(p.History, ClaritySnapshot{
		At:      now,
		Source:  source,
		Level:   p.Level,
		TotalXP: p.TotalXP,
		Scores:  scores,
	})
	if over := len(p.History) - MaxHistory; over > 0 {
		p.History = append([]ClaritySnapshot(nil), p.History[over:]...)
	}
}

// FirstLevelXP is the cumulative XP needed to leave level 0.
const FirstLevelXP = 100

// NewClarityProfile returns a profile with creation defaults.
func NewClarityProfile(userID string, now time.Time) *ClarityProfile {
	p := &ClarityProfile{UserID: userID, CreatedAt: now}
	p.Reset(now)
	return p
}

// DefaultTraits returns every trait at the default score with no XP.
func DefaultTraits() map[TraitName]Trait {
	traits := make(map[TraitName]Trait, len(TraitNames))
	for _, name := range TraitNames {
		traits[name] = Trait{Name: name, Score: DefaultTraitScore}
	}
	return traits
}

// Reset reinitializes everything except identity, version and creation time.
func (p *ClarityProfile) Reset(now time.Time) {
	p.Archetype = ""
	p.ArchetypeMeta = ArchetypeMeta{}
	p.Traits = DefaultTraits()
	p.TotalXP = 0
	p.Level = 0
	p.XPToNextLevel = FirstLevelXP
	p.LevelHistory = map[int]time.Time{}
	p.NegativeFeedbackCount = 0
	p.UpdatedAt = now
}

// Clone returns a deep copy.
func (p *ClarityProfile) Clone() *ClarityProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Traits = make(map[TraitName]Trait, len(p.Traits))
	for k, v := range p.Traits {
		out.Traits[k] = v
	}
	out.LevelHistory = make(map[int]time.Time, len(p.LevelHistory))
	for k, v := range p.LevelHistory {
		out.LevelHistory[k] = v
	}
	if p.History != nil {
		out.History = make([]ClaritySnapshot, len(p.History))
		copy(out.History, p.History)
	}
	return &out
}

// Validate checks that the profile carries exactly the fixed trait set.
func (p *ClarityProfile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrProfileNotInitialized)
	}
	if len(p.Traits) != len(TraitNames) {
		return fmt.Errorf("%w: expected %d traits, got %d", ErrProfileNotInitialized, len(TraitNames), len(p.Traits))
	}
	for _, name := range TraitNames {
		t, ok := p.Traits[name]
		if !ok {
			return fmt.Errorf("%w: missing trait %q", ErrProfileNotInitialized, name)
		}
		if t.Name != name {
			return fmt.Errorf("%w: trait %q stored under %q", ErrProfileNotInitialized, t.Name, name)
		}
	}
	return nil
}

// Trait returns a single trait, failing for unknown names.
func (p *ClarityProfile) Trait(name TraitName) (Trait, error) {
	t, ok := p.Traits[name]
	if !ok {
		return Trait{}, fmt.Errorf("%w: unknown trait %q", ErrInvalidArgument, name)
	}
	return t, nil
}
