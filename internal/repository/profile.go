package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// profileModel maps to the clarity_profiles table.
type profileModel struct {
	UserID           string `gorm:"primaryKey"`
	Archetype        string
	ArchetypeEmoji   string
	ArchetypeSummary string
	// Traits, LevelHistory and History are stored as JSONB documents.
	Traits                json.RawMessage `gorm:"type:jsonb"`
	LevelHistory          json.RawMessage `gorm:"type:jsonb"`
	History               json.RawMessage `gorm:"type:jsonb"`
	TotalXP               int
	Level                 int
	XPToNextLevel         int
	NegativeFeedbackCount int
	Version               int64 `gorm:"not null;default:1"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (profileModel) TableName() string {
	return "clarity_profiles"
}

// ProfileRepo accesses profile rows with optimistic versioning.
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepo returns a ProfileRepo.
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*types.ClarityProfile, error) {
	var record profileModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profileFromModel(record)
}

// Create inserts p at version 1, or fails with types.ErrConflict if the user
// already has a profile.
func (r *ProfileRepo) Create(ctx context.Context, p *types.ClarityProfile) error {
	record, err := profileToModel(p)
	if err != nil {
		return err
	}
	record.Version = 1

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to insert profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: profile %q already exists", types.ErrConflict, p.UserID)
	}
	p.Version = 1
	return nil
}

// Update writes p where the stored version equals p.Version.
func (r *ProfileRepo) Update(ctx context.Context, p *types.ClarityProfile) error {
	record, err := profileToModel(p)
	if err != nil {
		return err
	}
	next := p.Version + 1

	result := r.db.WithContext(ctx).
		Model(&profileModel{}).
		Where("user_id = ? AND version = ?", p.UserID, p.Version).
		Updates(map[string]any{
			"archetype":               record.Archetype,
			"archetype_emoji":         record.ArchetypeEmoji,
			"archetype_summary":       record.ArchetypeSummary,
			"traits":                  record.Traits,
			"level_history":           record.LevelHistory,
			"history":                 record.History,
			"total_xp":                record.TotalXP,
			"level":                   record.Level,
			"xp_to_next_level":        record.XPToNextLevel,
			"negative_feedback_count": record.NegativeFeedbackCount,
			"version":                 next,
			"updated_at":              record.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&profileModel{}).Where("user_id = ?", p.UserID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check profile: %w", err)
		}
		if count == 0 {
			return types.ErrProfileNotFound
		}
		return fmt.Errorf("%w: profile %q is no longer at version %d", types.ErrConflict, p.UserID, p.Version)
	}
	p.Version = next
	return nil
}

func profileToModel(p *types.ClarityProfile) (profileModel, error) {
	if p == nil {
		return profileModel{}, fmt.Errorf("%w: nil profile", types.ErrInvalidArgument)
	}
	traits, err := marshalJSON(p.Traits)
	if err != nil {
		return profileModel{}, fmt.Errorf("failed to encode profile traits: %w", err)
	}
	history, err := marshalJSON(p.LevelHistory)
	if err != nil {
		return profileModel{}, fmt.Errorf("failed to encode level history: %w", err)
	}
	snapshots, err := marshalJSON(p.History)
	if err != nil {
		return profileModel{}, fmt.Errorf("failed to encode clarity history: %w", err)
	}
	return profileModel{
		UserID:                p.UserID,
		Archetype:             p.Archetype,
		ArchetypeEmoji:        p.ArchetypeMeta.Emoji,
		ArchetypeSummary:      p.ArchetypeMeta.Description,
		Traits:                traits,
		LevelHistory:          history,
		History:               snapshots,
		TotalXP:               p.TotalXP,
		Level:                 p.Level,
		XPToNextLevel:         p.XPToNextLevel,
		NegativeFeedbackCount: p.NegativeFeedbackCount,
		Version:               p.Version,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}, nil
}

func profileFromModel(model profileModel) (*types.ClarityProfile, error) {
	p := &types.ClarityProfile{
		UserID:    model.UserID,
		Archetype: model.Archetype,
		ArchetypeMeta: types.ArchetypeMeta{
			Emoji:       model.ArchetypeEmoji,
			Description: model.ArchetypeSummary,
		},
		TotalXP:               model.TotalXP,
		Level:                 model.Level,
		XPToNextLevel:         model.XPToNextLevel,
		NegativeFeedbackCount: model.NegativeFeedbackCount,
		Version:               model.Version,
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
	if err := unmarshalJSON(model.Traits, &p.Traits); err != nil {
		return nil, fmt.Errorf("failed to decode profile traits: %w", err)
	}
	if err := unmarshalJSON(model.LevelHistory, &p.LevelHistory); err != nil {
		return nil, fmt.Errorf("failed to decode level history: %w", err)
	}
	if err := unmarshalJSON(model.History, &p.History); err != nil {
		return nil, fmt.Errorf("failed to decode clarity history: %w", err)
	}
	if p.LevelHistory == nil {
		p.LevelHistory = map[int]time.Time{}
	}
	return p, nil
}
