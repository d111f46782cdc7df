package clarity

import (
	"fmt"
	"time"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// LevelThresholds are the cumulative XP needed to reach each level.
var LevelThresholds = [...]int{0, 100, 200, 400, 700, 1100}

// MaxLevel is terminal; XP keeps accumulating past it.
const MaxLevel = len(LevelThresholds) - 1

var stageLabels = [...]string{"Shell", "Echo", "Voiceprint", "Imprint", "Reflection", "You"}

// AddXP adds delta to the total and advances through every threshold crossed,
// stamping each reached level with now. It returns the levels gained in order.
func AddXP(p *types.ClarityProfile, delta int, now time.Time) ([]int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if delta < 0 {
		return nil, fmt.Errorf("%w: negative xp delta %d", types.ErrInvalidArgument, delta)
	}
	if p.LevelHistory == nil {
		p.LevelHistory = map[int]time.Time{}
	}

	p.TotalXP += delta
	var gained []int
	for p.Level < MaxLevel && p.TotalXP >= LevelThresholds[p.Level+1] {
		p.Level++
		p.LevelHistory[p.Level] = now
		gained = append(gained, p.Level)
	}
	p.XPToNextLevel = nextThreshold(p.Level)
	return gained, nil
}

func nextThreshold(level int) int {
	if level >= MaxLevel {
		return 0
	}
	return LevelThresholds[level+1]
}

// StageLabel names a level.
func StageLabel(level int) string {
	if level < 0 || level > MaxLevel {
		return ""
	}
	return stageLabels[level]
}

// Progress is the fraction of the way from the current level's threshold to the next.
func Progress(p *types.ClarityProfile) float64 {
	if p.Level >= MaxLevel {
		return 1
	}
	lo, hi := LevelThresholds[p.Level], LevelThresholds[p.Level+1]
	frac := float64(p.TotalXP-lo) / float64(hi-lo)
	switch {
	case frac < 0:
		return 0
	case frac > 1:
		return 1
	default:
		return frac
	}
}
