package clarity

import (
	"fmt"
	"math"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// Signal is the typed verdict of an external classifier about a piece of user text.
type Signal struct {
	Category    InputCategory               `json:"category,omitempty"`
	Negative    bool                        `json:"negative"`
	Issues      []string                    `json:"issues,omitempty"`
	Adjustments map[types.TraitName]float64 `json:"adjustments,omitempty"`
	// Reflection is the classifier's short note back to the user. It never
	// changes the profile.
	Reflection string `json:"reflection,omitempty"`
}

// Empty reports whether the signal carries nothing to apply.
func (s Signal) Empty() bool {
	return s.Category == "" && !s.Negative && len(s.Adjustments) == 0
}

// Validate rejects unknown traits and non-finite deltas.
func (s Signal) Validate() error {
	for name, delta := range s.Adjustments {
		if _, ok := types.ParseTraitName(string(name)); !ok {
			return fmt.Errorf("%w: unknown trait %q", types.ErrInvalidArgument, name)
		}
		if math.IsNaN(delta) || math.IsInf(delta, 0) {
			return fmt.Errorf("%w: non-finite adjustment for %q", types.ErrInvalidArgument, name)
		}
	}
	return nil
}
