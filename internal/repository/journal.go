package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// journalModel maps to the clarity_journal_entries table.
type journalModel struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"index:idx_journal_user_created,priority:1"`
	Source     string
	Text       string
	Reflection string
	Category   string
	Negative   bool
	// Issues and Adjustments are stored as JSONB documents.
	Issues      json.RawMessage `gorm:"type:jsonb"`
	Adjustments json.RawMessage `gorm:"type:jsonb"`
	GrantedXP   int
	CreatedAt   time.Time `gorm:"index:idx_journal_user_created,priority:2"`
}

func (journalModel) TableName() string {
	return "clarity_journal_entries"
}

// JournalRepo accesses journal rows. Entries are append-only.
type JournalRepo struct {
	db *gorm.DB
}

// NewJournalRepo returns a JournalRepo.
func NewJournalRepo(db *gorm.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func (r *JournalRepo) Append(ctx context.Context, entry types.JournalEntry) error {
	record, err := journalToModel(entry)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (r *JournalRepo) List(ctx context.Context, userID string, limit int) ([]types.JournalEntry, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []journalModel
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	out := make([]types.JournalEntry, 0, len(records))
	for _, record := range records {
		entry, err := journalFromModel(record)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func journalToModel(entry types.JournalEntry) (journalModel, error) {
	issues, err := marshalJSON(entry.Issues)
	if err != nil {
		return journalModel{}, fmt.Errorf("failed to encode journal issues: %w", err)
	}
	adjustments, err := marshalJSON(entry.Adjustments)
	if err != nil {
		return journalModel{}, fmt.Errorf("failed to encode journal adjustments: %w", err)
	}
	return journalModel{
		ID:          entry.ID,
		UserID:      entry.UserID,
		Source:      string(entry.Source),
		Text:        entry.Text,
		Reflection:  entry.Reflection,
		Category:    entry.Category,
		Negative:    entry.Negative,
		Issues:      issues,
		Adjustments: adjustments,
		GrantedXP:   entry.GrantedXP,
		CreatedAt:   entry.CreatedAt,
	}, nil
}

func journalFromModel(model journalModel) (types.JournalEntry, error) {
	entry := types.JournalEntry{
		ID:         model.ID,
		UserID:     model.UserID,
		Source:     types.MemorySource(model.Source),
		Text:       model.Text,
		Reflection: model.Reflection,
		Category:   model.Category,
		Negative:   model.Negative,
		GrantedXP:  model.GrantedXP,
		CreatedAt:  model.CreatedAt,
	}
	if err := unmarshalJSON(model.Issues, &entry.Issues); err != nil {
		return types.JournalEntry{}, fmt.Errorf("failed to decode journal issues: %w", err)
	}
	if err := unmarshalJSON(model.Adjustments, &entry.Adjustments); err != nil {
		return types.JournalEntry{}, fmt.Errorf("failed to decode journal adjustments: %w", err)
	}
	return entry, nil
}
