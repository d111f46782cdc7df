// Package clarity implements the personality clarity engine: archetype
// classification, the trait ledger, the level ladder and feedback decay.
// The engine functions operate on an explicit *types.ClarityProfile and never
// touch storage; Service wires them to repositories.
package clarity

import (
	"fmt"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// Archetype is one of the ten fixed persona labels.
type Archetype string

const (
	ArchetypeStrategist Archetype = "Strategist"
	ArchetypeMarcher    Archetype = "Marcher"
	ArchetypePonderer   Archetype = "Ponderer"
	ArchetypeSpark      Archetype = "Spark"
	ArchetypeOracle     Archetype = "Oracle"
	ArchetypeHeartbeat  Archetype = "Heartbeat"
	ArchetypeRenegade   Archetype = "Renegade"
	ArchetypeSculptor   Archetype = "Sculptor"
	ArchetypeCoquette   Archetype = "Coquette"
	ArchetypePhantom    Archetype = "Phantom"
)

// CanonicalArchetypes is the fixed archetype order. Ties resolve to the earliest entry.
var CanonicalArchetypes = []Archetype{
	ArchetypeStrategist,
	ArchetypeMarcher,
	ArchetypePonderer,
	ArchetypeSpark,
	ArchetypeOracle,
	ArchetypeHeartbeat,
	ArchetypeRenegade,
	ArchetypeSculptor,
	ArchetypeCoquette,
	ArchetypePhantom,
}

var archetypeMeta = map[Archetype]types.ArchetypeMeta{
	ArchetypeStrategist: {Emoji: "♟️", Description: "Strategic, calm, structured. Always 3 steps ahead."},
	ArchetypeMarcher:    {Emoji: "🤬", Description: "Bold, driven, direct. You turn pressure into action."},
	ArchetypePonderer:   {Emoji: "🌀", Description: "Reflective, emotional, inward. You move through meaning."},
	ArchetypeSpark:      {Emoji: "⚡", Description: "Witty, chaotic, vibrant. You bring life into every room."},
	ArchetypeOracle:     {Emoji: "🔮", Description: "Philosophical, abstract, observant. You see beneath things."},
	ArchetypeHeartbeat:  {Emoji: "💗", Description: "Loyal, grounding, emotionally present. You hold space."},
	ArchetypeRenegade:   {Emoji: "😈", Description: "Unfiltered, raw, honest. You challenge what doesn't feel real."},
	ArchetypeSculptor:   {Emoji: "🗿", Description: "Disciplined, precise, reserved. You build slowly and solidly."},
	ArchetypeCoquette:   {Emoji: "😏", Description: "Flirty, smooth, intuitive. You read between every line."},
	ArchetypePhantom:    {Emoji: "🕷", Description: "Detached, elusive, hyper-logical. You stay unreadable."},
}

// ParseArchetype validates an archetype name.
func ParseArchetype(name string) (Archetype, error) {
	a := Archetype(name)
	if _, ok := archetypeMeta[a]; !ok {
		return "", fmt.Errorf("%w: unknown archetype %q", types.ErrInvalidArgument, name)
	}
	return a, nil
}

// Metadata returns the static emoji and description of an archetype.
func Metadata(a Archetype) (types.ArchetypeMeta, bool) {
	meta, ok := archetypeMeta[a]
	return meta, ok
}

// Answer is one answered quiz question: the chosen option and the archetypes it counts toward.
type Answer struct {
	Option     string      `json:"option"`
	Archetypes []Archetype `json:"archetypes"`
}

// Classify counts answers per archetype and returns the strictly highest bucket.
// Equal counts resolve to the archetype earliest in CanonicalArchetypes.
func Classify(answers []Answer) (Archetype, types.ArchetypeMeta, error) {
	if len(answers) == 0 {
		return "", types.ArchetypeMeta{}, fmt.Errorf("%w: no answers", types.ErrInsufficientInput)
	}

	counts := make(map[Archetype]int, len(CanonicalArchetypes))
	for i, answer := range answers {
		for _, a := range answer.Archetypes {
			if _, ok := archetypeMeta[a]; !ok {
				return "", types.ArchetypeMeta{}, fmt.Errorf("%w: answer %d tags unknown archetype %q", types.ErrInvalidArgument, i, a)
			}
			counts[a]++
		}
	}

	var winner Archetype
	best := 0
	for _, a := range CanonicalArchetypes {
		if counts[a] > best {
			winner, best = a, counts[a]
		}
	}
	if best == 0 {
		return "", types.ArchetypeMeta{}, fmt.Errorf("%w: answers tag no archetype", types.ErrInsufficientInput)
	}
	return winner, archetypeMeta[winner], nil
}

// AssignArchetype classifies answers onto p. It is a no-op returning false when
// the profile already has an archetype; retakes must ClearArchetype first.
func AssignArchetype(p *types.ClarityProfile, answers []Answer) (Archetype, bool, error) {
	if err := p.Validate(); err != nil {
		return "", false, err
	}
	if p.Archetype != "" {
		return Archetype(p.Archetype), false, nil
	}
	winner, meta, err := Classify(answers)
	if err != nil {
		return "", false, err
	}
	p.Archetype = string(winner)
	p.ArchetypeMeta = meta
	return winner, true, nil
}

// ClearArchetype removes the archetype so the quiz can be taken again.
func ClearArchetype(p *types.ClarityProfile) {
	p.Archetype = ""
	p.ArchetypeMeta = types.ArchetypeMeta{}
}
