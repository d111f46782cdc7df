package clarity

import (
	"fmt"

	"github.com/easeaico/mirror-clarity/internal/types"
)

const (
	decayXP    = 2
	decayScore = 0.2
	// RecalibrationThreshold is the negative feedback count at which recalibration is advised.
	RecalibrationThreshold = 6
)

// ApplyNegativeFeedback shrinks every trait and counts the signal. It reports
// whether recalibration is now recommended. TotalXP and level are untouched.
func ApplyNegativeFeedback(p *types.ClarityProfile) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	for _, name := range types.TraitNames {
		t := p.Traits[name]
		t.XP = max(0, t.XP-decayXP)
		t.Score = max(types.MinTraitScore, t.Score-decayScore)
		p.Traits[name] = t
	}
	p.NegativeFeedbackCount++
	return RecalibrationRecommended(p), nil
}

// RecalibrationRecommended is advisory; nothing acts on it automatically.
func RecalibrationRecommended(p *types.ClarityProfile) bool {
	return p != nil && p.NegativeFeedbackCount >= RecalibrationThreshold
}

// Recalibrate resets traits and clears the archetype and feedback count.
// Level, TotalXP and LevelHistory are kept since levels never go down.
func Recalibrate(p *types.ClarityProfile) error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", types.ErrProfileNotInitialized)
	}
	p.Traits = types.DefaultTraits()
	ClearArchetype(p)
	p.NegativeFeedbackCount = 0
	return nil
}

// Ready fails until the profile has an archetype.
func Ready(p *types.ClarityProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Archetype == "" {
		return fmt.Errorf("%w: archetype quiz not taken", types.ErrProfileNotInitialized)
	}
	return nil
}
