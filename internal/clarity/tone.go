package clarity

import "github.com/easeaico/mirror-clarity/internal/types"

// toneThreshold is the score a trait must exceed to color the reply tone.
const toneThreshold = 60.0

var toneTags = map[types.TraitName]string{
	types.TraitHumor:        "witty",
	types.TraitEmpathy:      "emotionally intelligent",
	types.TraitAmbition:     "motivational",
	types.TraitFlirtiness:   "charismatic",
	types.TraitLogic:        "analytical",
	types.TraitBoldness:     "direct",
	types.TraitMemory:       "attentive",
	types.TraitDepth:        "reflective",
	types.TraitAdaptability: "adaptive",
}

// ToneTags lists tone descriptors for traits scoring above the threshold, in canonical order.
func ToneTags(p *types.ClarityProfile) []string {
	tags := []string{}
	if p == nil {
		return tags
	}
	for _, name := range types.TraitNames {
		if t, ok := p.Traits[name]; ok && t.Score > toneThreshold {
			tags = append(tags, toneTags[name])
		}
	}
	return tags
}

// PromptContext is the data an external prompt builder folds into a model prompt.
type PromptContext struct {
	UserID      string   `json:"user_id"`
	Archetype   string   `json:"archetype"`
	Emoji       string   `json:"emoji"`
	Description string   `json:"description"`
	ToneTags    []string `json:"tone_tags"`
	Level       int      `json:"level"`
	Stage       string   `json:"stage"`
	Progress    float64  `json:"progress"`
	Memories    []string `json:"memories"`
}

// NewPromptContext snapshots a profile and supporting memories.
func NewPromptContext(p *types.ClarityProfile, memories []string) PromptContext {
	if memories == nil {
		memories = []string{}
	}
	return PromptContext{
		UserID:      p.UserID,
		Archetype:   p.Archetype,
		Emoji:       p.ArchetypeMeta.Emoji,
		Description: p.ArchetypeMeta.Description,
		ToneTags:    ToneTags(p),
		Level:       p.Level,
		Stage:       StageLabel(p.Level),
		Progress:    Progress(p),
		Memories:    memories,
	}
}
