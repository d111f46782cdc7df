package clarity

import (
	"fmt"
	"math"
	"strings"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// InputCategory tags an input event for trait bias.
type InputCategory string

const (
	CategoryJournal     InputCategory = "journal"
	CategoryDM          InputCategory = "dm"
	CategoryRant        InputCategory = "rant"
	CategoryPhilosophy  InputCategory = "philosophy"
	CategoryFlirt       InputCategory = "flirt"
	CategoryTagFeedback InputCategory = "tag_feedback"
	CategoryRateReply   InputCategory = "rate_reply"
)

// InputCategories lists the mapped categories.
var InputCategories = []InputCategory{
	CategoryJournal,
	CategoryDM,
	CategoryRant,
	CategoryPhilosophy,
	CategoryFlirt,
	CategoryTagFeedback,
	CategoryRateReply,
}

var inputBias = map[InputCategory]map[types.TraitName]int{
	CategoryJournal:     {types.TraitEmpathy: 40, types.TraitMemory: 20},
	CategoryDM:          {types.TraitHumor: 10, types.TraitAdaptability: 10, types.TraitFlirtiness: 5},
	CategoryRant:        {types.TraitBoldness: 30, types.TraitEmpathy: 10},
	CategoryPhilosophy:  {types.TraitDepth: 40, types.TraitLogic: 20},
	CategoryFlirt:       {types.TraitFlirtiness: 40, types.TraitHumor: 10},
	CategoryTagFeedback: {types.TraitAdaptability: 20, types.TraitMemory: 10},
	CategoryRateReply:   {types.TraitLogic: 10, types.TraitAdaptability: 10},
}

const (
	// xpPerScorePoint converts category XP into score: score moves delta/10.
	xpPerScorePoint = 10.0
	// adjustmentScale maps a [-1,1] adjustment to score points and XP.
	adjustmentScale = 10.0
)

// ParseInputCategory normalizes a category name. Unknown names are returned
// as-is because an unmapped category is a valid no-op.
func ParseInputCategory(s string) InputCategory {
	return InputCategory(strings.ToLower(strings.TrimSpace(s)))
}

// categoryLabel bounds metric label values to the mapped categories.
func categoryLabel(category InputCategory) string {
	if _, ok := inputBias[category]; ok {
		return string(category)
	}
	return "unmapped"
}

// InputBias returns a copy of the {trait: xp} table for a category.
func InputBias(category InputCategory) map[types.TraitName]int {
	bias, ok := inputBias[category]
	if !ok {
		return nil
	}
	out := make(map[types.TraitName]int, len(bias))
	for k, v := range bias {
		out[k] = v
	}
	return out
}

// ApplyInput grants the category's XP to each biased trait and nudges its score
// by a tenth of the XP. It returns the total XP granted for the level engine.
func ApplyInput(p *types.ClarityProfile, category InputCategory) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	bias, ok := inputBias[category]
	if !ok {
		return 0, nil
	}

	granted := 0
	for _, name := range types.TraitNames {
		delta, ok := bias[name]
		if !ok {
			continue
		}
		t := p.Traits[name]
		t.XP += delta
		t.Score = clampScore(t.Score + float64(delta)/xpPerScorePoint)
		p.Traits[name] = t
		granted += delta
	}
	return granted, nil
}

// ApplyAdjustments applies signed per-trait nudges in [-1,1], as produced by the
// signal classifier. Scores move by delta*10; XP grows by |delta*10| and never shrinks.
// Unknown trait keys fail before anything is mutated.
func ApplyAdjustments(p *types.ClarityProfile, adjustments map[types.TraitName]float64) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	for name, delta := range adjustments {
		if _, ok := p.Traits[name]; !ok {
			return 0, fmt.Errorf("%w: unknown trait %q", types.ErrInvalidArgument, name)
		}
		if math.IsNaN(delta) || math.IsInf(delta, 0) {
			return 0, fmt.Errorf("%w: non-finite adjustment for %q", types.ErrInvalidArgument, name)
		}
	}

	granted := 0
	for _, name := range types.TraitNames {
		delta, ok := adjustments[name]
		if !ok {
			continue
		}
		delta = math.Max(-1, math.Min(1, delta))
		t := p.Traits[name]
		t.Score = clampScore(t.Score + delta*adjustmentScale)
		xp := int(math.Round(math.Abs(delta * adjustmentScale)))
		t.XP += xp
		p.Traits[name] = t
		granted += xp
	}
	return granted, nil
}

// CategoryForSource maps a memory source to the ledger category it feeds.
func CategoryForSource(source types.MemorySource) InputCategory {
	switch source {
	case types.MemorySourceJournal, types.MemorySourceVoiceJournal:
		return CategoryJournal
	case types.MemorySourceChat:
		return CategoryDM
	default:
		return ""
	}
}

func clampScore(score float64) float64 {
	switch {
	case score < types.MinTraitScore:
		return types.MinTraitScore
	case score > types.MaxTraitScore:
		return types.MaxTraitScore
	default:
		return score
	}
}
