package clarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/easeaico/mirror-clarity/internal/lock"
	"github.com/easeaico/mirror-clarity/internal/metrics"
	"github.com/easeaico/mirror-clarity/internal/types"
)

// Snapshot sources besides the memory sources.
const (
	snapshotQuiz        = "quiz"
	snapshotInput       = "input"
	snapshotSignal      = "signal"
	snapshotFeedback    = "feedback"
	snapshotRecalibrate = "recalibrate"
	snapshotReset       = "reset"
)

const (
	defaultMaxRetries = 5
	defaultTopN       = 3
	profileLockPrefix = "profile:"
)

// ProfileRepo persists profiles with optimistic versioning.
// Get returns types.ErrProfileNotFound on a miss. Create returns types.ErrConflict
// if the profile exists. Update writes only if the stored version equals p.Version,
// bumps p.Version on success and returns types.ErrConflict otherwise.
type ProfileRepo interface {
	Get(ctx context.Context, userID string) (*types.ClarityProfile, error)
	Create(ctx context.Context, p *types.ClarityProfile) error
	Update(ctx context.Context, p *types.ClarityProfile) error
}

// MemoryIndex stores and retrieves a user's memories.
type MemoryIndex interface {
	Store(ctx context.Context, userID, text string, source types.MemorySource) (types.MemoryRecord, error)
	QueryRecords(ctx context.Context, userID, text string, topN int) ([]types.ScoredMemory, error)
	// List returns the user's records newest first. An empty source matches all.
	List(ctx context.Context, userID string, source types.MemorySource, limit int) ([]types.MemoryRecord, error)
}

// JournalRepo keeps classified entries. List returns newest first; limit <= 0
// returns everything.
type JournalRepo interface {
	Append(ctx context.Context, e types.JournalEntry) error
	List(ctx context.Context, userID string, limit int) ([]types.JournalEntry, error)
}

// Classifier turns free text into a typed Signal.
type Classifier interface {
	Analyze(ctx context.Context, text string) (Signal, error)
}

// Service applies engine operations to persisted profiles. Every mutation runs
// under a per-user lock and is written back with an optimistic version check.
type Service struct {
	profiles   ProfileRepo
	locker     lock.Locker
	memories   MemoryIndex
	classifier Classifier
	journal    JournalRepo
	quiz       Quiz
	metrics    *metrics.Metrics
	now        func() time.Time
	maxRetries int
	topN       int
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the in-process keyed mutex.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithMemories enables memory storage and retrieval.
func WithMemories(m MemoryIndex) Option {
	return func(s *Service) { s.memories = m }
}

// WithClassifier enables Reflect.
func WithClassifier(c Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithJournal keeps every Reflect verdict alongside its text.
func WithJournal(j JournalRepo) Option {
	return func(s *Service) { s.journal = j }
}

// WithQuiz replaces DefaultQuiz.
func WithQuiz(q Quiz) Option {
	return func(s *Service) { s.quiz = q }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxRetries bounds the optimistic retry loop.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithTopN sets how many supporting memories are fetched for new text.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// NewService returns a Service over profiles.
func NewService(profiles ProfileRepo, opts ...Option) *Service {
	s := &Service{
		profiles:   profiles,
		locker:     lock.NewKeyedMutex(),
		quiz:       DefaultQuiz(),
		now:        time.Now,
		maxRetries: defaultMaxRetries,
		topN:       defaultTopN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasClassifier reports whether Reflect can run.
func (s *Service) HasClassifier() bool {
	return s.classifier != nil
}

// HasMemories reports whether Recall and memory-backed context are available.
func (s *Service) HasMemories() bool {
	return s.memories != nil
}

// HasJournal reports whether Journal can run.
func (s *Service) HasJournal() bool {
	return s.journal != nil
}

// Quiz returns the quiz used by TakeQuiz.
func (s *Service) Quiz() Quiz {
	return s.quiz
}

// QuizResult is the outcome of TakeQuiz or RetakeQuiz.
type QuizResult struct {
	Profile   *types.ClarityProfile `json:"profile"`
	Archetype Archetype             `json:"archetype"`
	Assigned  bool                  `json:"assigned"`
}

// InputResult is the outcome of a ledger input rolled into the level engine.
type InputResult struct {
	Profile      *types.ClarityProfile `json:"profile"`
	GrantedXP    int                   `json:"granted_xp"`
	LevelsGained []int                 `json:"levels_gained"`
}

// Observation is the outcome of Observe.
type Observation struct {
	InputResult
	Record   types.MemoryRecord `json:"record"`
	Memories []string           `json:"memories"`
}

// SignalResult is the outcome of ApplySignal.
type SignalResult struct {
	InputResult
	RecalibrationRecommended bool `json:"recalibration_recommended"`
}

// Reflection is the outcome of Reflect.
type Reflection struct {
	SignalResult
	Signal Signal             `json:"signal"`
	Record types.MemoryRecord `json:"record"`
	// Entry is nil when no journal is configured.
	Entry *types.JournalEntry `json:"entry,omitempty"`
}

// FeedbackResult is the outcome of NegativeFeedback.
type FeedbackResult struct {
	Profile                  *types.ClarityProfile `json:"profile"`
	RecalibrationRecommended bool                  `json:"recalibration_recommended"`
}

// Profile returns the user's profile, creating it with defaults on first access.
func (s *Service) Profile(ctx context.Context, userID string) (*types.ClarityProfile, error) {
	return s.load(ctx, userID)
}

// TakeQuiz classifies the selections. It leaves an existing archetype untouched.
func (s *Service) TakeQuiz(ctx context.Context, userID string, selections []int) (QuizResult, error) {
	return s.quizOp(ctx, userID, selections, false)
}

// RetakeQuiz clears any archetype and classifies the selections again.
func (s *Service) RetakeQuiz(ctx context.Context, userID string, selections []int) (QuizResult, error) {
	return s.quizOp(ctx, userID, selections, true)
}

func (s *Service) quizOp(ctx context.Context, userID string, selections []int, retake bool) (QuizResult, error) {
	answers, err := s.quiz.Answers(selections)
	if err != nil {
		return QuizResult{}, err
	}
	var result QuizResult
	p, err := s.mutate(ctx, userID, func(p *types.ClarityProfile) error {
		if retake {
			ClearArchetype(p)
		}
		archetype, assigned, err := AssignArchetype(p, answers)
		if err != nil {
			return err
		}
		result.Archetype, result.Assigned = archetype, assigned
		if assigned {
			p.Snapshot(snapshotQuiz, s.now())
		}
		return nil
	})
	if err != nil {
		return QuizResult{}, err
	}
	result.Profile = p
	if result.Assigned {
		slog.Info("archetype assigned", "user_id", userID, "archetype", result.Archetype, "retake", retake)
	}
	return result, nil
}

// ApplyCategory applies a category's trait bias and rolls the XP into the level.
func (s *Service) ApplyCategory(ctx context.Context, userID string, category InputCategory) (InputResult, error) {
	var result InputResult
	p, err := s.mutate(ctx, userID, func(p *types.ClarityProfile) error {
		if err := Ready(p); err != nil {
			return err
		}
		r, err := s.applyInput(p, category)
		if err != nil {
			return err
		}
		result = r
		p.Snapshot(snapshotInput, s.now())
		return nil
	})
	if err != nil {
		return InputResult{}, err
	}
	result.Profile = p
	s.recordInput(userID, category, result.LevelsGained)
	return result, nil
}

// Observe handles new user text: it fetches supporting memories, stores the
// text, then applies the source's category to the ledger.
func (s *Service) Observe(ctx context.Context, userID, text string, source types.MemorySource) (Observation, error) {
	if strings.TrimSpace(text) == "" {
		return Observation{}, fmt.Errorf("%w: empty text", types.ErrInvalidArgument)
	}
	if _, err := types.ParseMemorySource(string(source)); err != nil {
		return Observation{}, err
	}
	current, err := s.load(ctx, userID)
	if err != nil {
		return Observation{}, err
	}
	if err := Ready(current); err != nil {
		return Observation{}, err
	}

	var obs Observation
	if s.memories != nil {
		memories, err := s.supportingMemories(ctx, userID, text)
		if err != nil {
			return Observation{}, err
		}
		obs.Memories = memories
		rec, err := s.memories.Store(ctx, userID, text, source)
		if err != nil {
			return Observation{}, fmt.Errorf("failed to store memory: %w", err)
		}
		obs.Record = rec
	}
	if obs.Memories == nil {
		obs.Memories = []string{}
	}

	category := CategoryForSource(source)
	p, err := s.mutate(ctx, userID, func(p *types.ClarityProfile) error {
		if err := Ready(p); err != nil {
			return err
		}
		r, err := s.applyInput(p, category)
		if err != nil {
			return err
		}
		obs.InputResult = r
		p.Snapshot(string(source), s.now())
		return nil
	})
	if err != nil {
		return Observation{}, err
	}
	obs.Profile = p
	s.recordInput(userID, category, obs.LevelsGained)
	return obs, nil
}

// ApplySignal applies a classifier verdict: the category bias, any trait
// adjustments, and a decay step when the signal is negative.
func (s *Service) ApplySignal(ctx context.Context, userID string, sig Signal) (SignalResult, error) {
	return s.applySignal(ctx, userID, sig, snapshotSignal)
}

func (s *Service) applySignal(ctx context.Context, userID string, sig Signal, source string) (SignalResult, error) {
	if err := sig.Validate(); err != nil {
		return SignalResult{}, err
	}
	var (
		result         SignalResult
		recommendedNow bool
	)
	p, err := s.mutate(ctx, userID, func(p *types.ClarityProfile) error {
		if err := Ready(p); err != nil {
			return err
		}
		granted := 0
		if sig.Category != "" {
			g, err := ApplyInput(p, sig.Category)
			if err != nil {
				return err
			}
			granted += g
		}
		if len(sig.Adjustments) > 0 {
			g, err := ApplyAdjustments(p, sig.Adjustments)
			if err != nil {
				return err
			}
			granted += g
		}
		gained, err := AddXP(p, granted, s.now())
		if err != nil {
			return err
		}
		result.GrantedXP, result.LevelsGained = granted, gained

		recommendedNow = false
		if sig.Negative {
			before := RecalibrationRecommended(p)
			rec, err := ApplyNegativeFeedback(p)
			if err != nil {
				return err
			}
			recommendedNow = rec && !before
		}
		result.RecalibrationRecommended = RecalibrationRecommended(p)
		p.Snapshot(source, s.now())
		return nil
	})
	if err != nil {
		return SignalResult{}, err
	}
	result.Profile = p
	if sig.Category != "" {
		s.recordInput(userID, sig.Category, result.LevelsGained)
	} else {
		s.metrics.RecordLevelUps(result.LevelsGained)
	}
	if sig.Negative {
		s.metrics.RecordNegativeFeedback(recommendedNow)
	}
	return result, nil
}

// Reflect classifies journal-style text, stores it as a memory and applies the signal.
func (s *Service) Reflect(ctx context.Context, userID, text string, source types.MemorySource) (Reflection, error) {
	if s.classifier == nil {
		return Reflection{}, fmt.Errorf("signal classifier not configured")
	}
	if strings.TrimSpace(text) == "" {
		return Reflection{}, fmt.Errorf("%w: empty text", types.ErrInvalidArgument)
	}
	if source == "" {
		source = types.MemorySourceJournal
	}
	if _, err := types.ParseMemorySource(string(source)); err != nil {
		return Reflection{}, err
	}
	current, err := s.load(ctx, userID)
	if err != nil {
		return Reflection{}, err
	}
	if err := Ready(current); err != nil {
		return Reflection{}, err
	}

	sig, err := s.classifier.Analyze(ctx, text)
	if err != nil {
		return Reflection{}, fmt.Errorf("failed to analyze text: %w", err)
	}
	if sig.Category == "" {
		sig.Category = CategoryForSource(source)
	}

	var out Reflection
	if s.memories != nil {
		rec, err := s.memories.Store(ctx, userID, text, source)
		if err != nil {
			return Reflection{}, fmt.Errorf("failed to store memory: %w", err)
		}
		out.Record = rec
	}
	res, err := s.applySignal(ctx, userID, sig, string(source))
	if err != nil {
		return Reflection{}, err
	}
	out.SignalResult = res
	out.Signal = sig

	if s.journal != nil {
		entry := types.JournalEntry{
			ID:          uuid.NewString(),
			UserID:      userID,
			Source:      source,
			Text:        strings.TrimSpace(text),
			Reflection:  sig.Reflection,
			Category:    string(sig.Category),
			Negative:    sig.Negative,
			Issues:      sig.Issues,
			Adjustments: sig.Adjustments,
			GrantedXP:   res.GrantedXP,
			CreatedAt:   s.now(),
		}
		if err := s.journal.Append(ctx, entry); err != nil {
			return Reflection{}, fmt.Errorf("failed to append journal entry: %w", err)
		}
		out.Entry = &entry
	}
	return out, nil
}

// NegativeFeedback decays the profile after the user rejects a reply.
func (s *Service) NegativeFeedback(ctx context.Context, userID string) (FeedbackResult, error) {
	var recommended, recommendedNow bool
	p, err := s.mutate(ctx, userID, func(p *types.ClarityProfile) error {
		before := RecalibrationRecommended(p)
		rec, err := ApplyNegativeFeedback(p)
		if err != nil {
			return err
		}
		recommended, recommendedNow = rec, rec && !before
		p.Snapshot(snapshotFeedback, s.now())
		return nil
	})
	if err != nil {
		return FeedbackResult{}, err
	}
	s.metrics.RecordNegativeFeedback(recommendedNow)
	if recommendedNow {
		slog.Info("recalibration recommended", "user_id", userID, "negative_feedback_count", p.NegativeFeedbackCount)
	}
	return FeedbackResult{Profile: p, RecalibrationRecommended: recommended}, nil
}

// Recalibrate resets traits and clears the archetype. The quiz must be taken again.
func (s *Service) Recalibrate(ctx context.Context, userID string) (*types.ClarityProfile, error) {
	p, err := s.mutate(ctx, userID, func(p *types.ClarityProfile) error {
		if err := Recalibrate(p); err != nil {
			return err
		}
		p.Snapshot(snapshotRecalibrate, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("profile recalibrated", "user_id", userID)
	return p, nil
}

// Reset reinitializes the profile to creation defaults. Memories are kept.
func (s *Service) Reset(ctx context.Context, userID string) (*types.ClarityProfile, error) {
	p, err := s.mutate(ctx, userID, func(p *types.ClarityProfile) error {
		p.Reset(s.now())
		p.Snapshot(snapshotReset, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("profile reset", "user_id", userID)
	return p, nil
}

// Recall ranks the user's memories against text.
func (s *Service) Recall(ctx context.Context, userID, text string, topN int) ([]types.ScoredMemory, error) {
	if s.memories == nil {
		return nil, fmt.Errorf("memory index not configured")
	}
	return s.memories.QueryRecords(ctx, userID, text, topN)
}

// PromptContext returns the data an external prompt builder needs for text.
// An empty text skips memory retrieval.
func (s *Service) PromptContext(ctx context.Context, userID, text string) (PromptContext, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return PromptContext{}, err
	}
	var memories []string
	if s.memories != nil && strings.TrimSpace(text) != "" {
		memories, err = s.supportingMemories(ctx, userID, text)
		if err != nil {
			return PromptContext{}, err
		}
	}
	return NewPromptContext(p, memories), nil
}

func (s *Service) supportingMemories(ctx context.Context, userID, text string) ([]string, error) {
	scored, err := s.memories.QueryRecords(ctx, userID, text, s.topN)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	out := make([]string, 0, len(scored))
	for _, m := range scored {
		out = append(out, m.Text)
	}
	return out, nil
}

// History returns the last limit snapshots, oldest first. limit <= 0 returns all.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]types.ClaritySnapshot, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	history := p.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	if history == nil {
		history = []types.ClaritySnapshot{}
	}
	return history, nil
}

// Journal lists classified entries newest first.
func (s *Service) Journal(ctx context.Context, userID string, limit int) ([]types.JournalEntry, error) {
	if s.journal == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", types.ErrInvalidArgument)
	}
	entries, err := s.journal.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	if entries == nil {
		entries = []types.JournalEntry{}
	}
	return entries, nil
}

// Memories lists stored records newest first, optionally for one source.
func (s *Service) Memories(ctx context.Context, userID string, source types.MemorySource, limit int) ([]types.MemoryRecord, error) {
	if s.memories == nil {
		return nil, fmt.Errorf("memory index not configured")
	}
	if source != "" {
		if _, err := types.ParseMemorySource(string(source)); err != nil {
			return nil, err
		}
	}
	return s.memories.List(ctx, userID, source, limit)
}

func (s *Service) applyInput(p *types.ClarityProfile, category InputCategory) (InputResult, error) {
	granted, err := ApplyInput(p, category)
	if err != nil {
		return InputResult{}, err
	}
	gained, err := AddXP(p, granted, s.now())
	if err != nil {
		return InputResult{}, err
	}
	return InputResult{GrantedXP: granted, LevelsGained: gained}, nil
}

func (s *Service) recordInput(userID string, category InputCategory, gained []int) {
	s.metrics.RecordInput(categoryLabel(category))
	s.metrics.RecordLevelUps(gained)
	for _, level := range gained {
		slog.Info("level reached", "user_id", userID, "level", level, "stage", StageLabel(level))
	}
}

// mutate loads the profile under the user's lock, applies fn to a copy and
// writes it back, retrying on version conflicts.
func (s *Service) mutate(ctx context.Context, userID string, fn func(p *types.ClarityProfile) error) (*types.ClarityProfile, error) {
	unlock, err := s.locker.Lock(ctx, profileLockPrefix+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}
	defer unlock()

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		current, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.UpdatedAt = s.now()

		err = s.profiles.Update(ctx, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, types.ErrConflict) {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
		s.metrics.RecordConflict()
		slog.Warn("profile update conflict, retrying", "user_id", userID, "attempt", attempt)
	}
	return nil, fmt.Errorf("%w: profile %s still conflicting after %d attempts", types.ErrConflict, userID, s.maxRetries)
}

func (s *Service) load(ctx context.Context, userID string) (*types.ClarityProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", types.ErrInvalidArgument)
	}
	p, err := s.profiles.Get(ctx, userID)
	if err == nil {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	}
	if !errors.Is(err, types.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p = types.NewClarityProfile(userID, s.now())
	if err := s.profiles.Create(ctx, p); err != nil {
		if !errors.Is(err, types.ErrConflict) {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		// Lost a first-access race; the winner's profile is authoritative.
		p, err = s.profiles.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	}
	slog.Info("profile created", "user_id", userID)
	return p, nil
}
