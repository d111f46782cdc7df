package clarity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// QuizOption is a selectable answer that counts toward two or three archetypes.
type QuizOption struct {
	Label      string      `json:"label" yaml:"label"`
	Archetypes []Archetype `json:"archetypes" yaml:"archetypes"`
}

// Question is a quiz prompt with its ordered options.
type Question struct {
	Prompt  string       `json:"prompt" yaml:"prompt"`
	Options []QuizOption `json:"options" yaml:"options"`
}

// Quiz is the ordered question list used for archetype classification.
type Quiz struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// An option expresses partial affinity with two or three archetypes.
const (
	minOptionArchetypes = 2
	maxOptionArchetypes = 3
)

// DefaultQuiz returns the built-in six question archetype quiz.
func DefaultQuiz() Quiz {
	return Quiz{Questions: []Question{
		{
			Prompt: "How do you usually process emotion?",
			Options: []QuizOption{
				{Label: "Pause and reflect first", Archetypes: []Archetype{ArchetypePonderer, ArchetypeOracle}},
				{Label: "Feel deeply and speak when needed", Archetypes: []Archetype{ArchetypeHeartbeat, ArchetypeCoquette}},
				{Label: "Stay logical and remove emotion", Archetypes: []Archetype{ArchetypePhantom, ArchetypeStrategist}},
				{Label: "Express it quickly and clearly", Archetypes: []Archetype{ArchetypeMarcher, ArchetypeRenegade}},
			},
		},
		{
			Prompt: "How do you handle conflict?",
			Options: []QuizOption{
				{Label: "Stay quiet and calculate", Archetypes: []Archetype{ArchetypePhantom, ArchetypeStrategist}},
				{Label: "De-escalate and empathize", Archetypes: []Archetype{ArchetypeHeartbeat, ArchetypePonderer}},
				{Label: "Say it straight, maybe too straight", Archetypes: []Archetype{ArchetypeRenegade, ArchetypeMarcher}},
				{Label: "Deflect with humor or distraction", Archetypes: []Archetype{ArchetypeSpark, ArchetypeCoquette}},
			},
		},
		{
			Prompt: "What kind of space energizes you?",
			Options: []QuizOption{
				{Label: "Solo, reflective environments", Archetypes: []Archetype{ArchetypeOracle, ArchetypePonderer}},
				{Label: "Goal-oriented, productive zones", Archetypes: []Archetype{ArchetypeSculptor, ArchetypeStrategist}},
				{Label: "Loud, vibrant group dynamics", Archetypes: []Archetype{ArchetypeSpark, ArchetypeCoquette}},
				{Label: "Pressure-filled momentum moments", Archetypes: []Archetype{ArchetypeMarcher, ArchetypePhantom}},
			},
		},
		{
			Prompt: "What do people praise you for?",
			Options: []QuizOption{
				{Label: "Loyalty or emotional grounding", Archetypes: []Archetype{ArchetypeHeartbeat, ArchetypePonderer}},
				{Label: "Sharp mind and insights", Archetypes: []Archetype{ArchetypeOracle, ArchetypeStrategist}},
				{Label: "Energy, charm, or presence", Archetypes: []Archetype{ArchetypeSpark, ArchetypeCoquette}},
				{Label: "Bravery and honesty", Archetypes: []Archetype{ArchetypeRenegade, ArchetypeMarcher}},
			},
		},
		{
			Prompt: "What do you value most in others?",
			Options: []QuizOption{
				{Label: "Emotional intelligence and patience", Archetypes: []Archetype{ArchetypeHeartbeat, ArchetypePonderer}},
				{Label: "Drive and confidence", Archetypes: []Archetype{ArchetypeMarcher, ArchetypeRenegade}},
				{Label: "Intellect and independence", Archetypes: []Archetype{ArchetypePhantom, ArchetypeStrategist}},
				{Label: "Creativity and boldness", Archetypes: []Archetype{ArchetypeSpark, ArchetypeCoquette}},
			},
		},
		{
			Prompt: "What do you tend to hide from others?",
			Options: []QuizOption{
				{Label: "How deeply I feel", Archetypes: []Archetype{ArchetypePhantom, ArchetypeSculptor}},
				{Label: "Fear of not being chosen", Archetypes: []Archetype{ArchetypeCoquette, ArchetypeSpark}},
				{Label: "Self-doubt or hesitation", Archetypes: []Archetype{ArchetypeMarcher, ArchetypeRenegade}},
				{Label: "Overthinking everything", Archetypes: []Archetype{ArchetypeStrategist, ArchetypeOracle, ArchetypePonderer}},
			},
		},
	}}
}

// LoadQuiz reads a quiz definition from a YAML file.
func LoadQuiz(path string) (Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Quiz{}, fmt.Errorf("failed to read quiz file: %w", err)
	}
	var quiz Quiz
	if err := yaml.Unmarshal(data, &quiz); err != nil {
		return Quiz{}, fmt.Errorf("failed to parse quiz file: %w", err)
	}
	if err := quiz.Validate(); err != nil {
		return Quiz{}, err
	}
	return quiz, nil
}

// Validate checks that each option maps to one to three known archetypes.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz has no questions", types.ErrInvalidArgument)
	}
	for i, question := range q.Questions {
		if len(question.Options) == 0 {
			return fmt.Errorf("%w: question %d has no options", types.ErrInvalidArgument, i)
		}
		for j, option := range question.Options {
			if n := len(option.Archetypes); n < minOptionArchetypes || n > maxOptionArchetypes {
				return fmt.Errorf("%w: question %d option %d maps to %d archetypes", types.ErrInvalidArgument, i, j, n)
			}
			for _, a := range option.Archetypes {
				if _, ok := archetypeMeta[a]; !ok {
					return fmt.Errorf("%w: question %d option %d: unknown archetype %q", types.ErrInvalidArgument, i, j, a)
				}
			}
		}
	}
	return nil
}

// Answers maps one selected option index per question, in order, to classifier answers.
// Fewer selections than questions is allowed; unanswered questions count for nothing.
func (q Quiz) Answers(selections []int) ([]Answer, error) {
	if len(selections) > len(q.Questions) {
		return nil, fmt.Errorf("%w: %d selections for %d questions", types.ErrInvalidArgument, len(selections), len(q.Questions))
	}
	answers := make([]Answer, 0, len(selections))
	for i, sel := range selections {
		options := q.Questions[i].Options
		if sel < 0 || sel >= len(options) {
			return nil, fmt.Errorf("%w: selection %d out of range for question %d", types.ErrInvalidArgument, sel, i)
		}
		opt := options[sel]
		answers = append(answers, Answer{
			Option:     opt.Label,
			Archetypes: append([]Archetype(nil), opt.Archetypes...),
		})
	}
	return answers, nil
}
