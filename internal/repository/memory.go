package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// memoryModel maps to the clarity_memories table.
type memoryModel struct {
	UserID string `gorm:"primaryKey"`
	// ID is the content hash of Text, unique per user.
	ID     string `gorm:"primaryKey"`
	Text   string
	Source string
	// Embedding stores vector representation for similarity search.
	Embedding *pgvector.Vector `gorm:"type:vector"`
	CreatedAt time.Time        `gorm:"index"`
}

func (memoryModel) TableName() string {
	return "clarity_memories"
}

// MemoryRepo accesses memory rows. It ranks with pgvector's cosine distance.
type MemoryRepo struct {
	db *gorm.DB
}

// NewMemoryRepo returns a MemoryRepo.
func NewMemoryRepo(db *gorm.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

func (r *MemoryRepo) Insert(ctx context.Context, rec types.MemoryRecord) (types.MemoryRecord, bool, error) {
	record := memoryToModel(rec)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return types.MemoryRecord{}, false, fmt.Errorf("failed to insert memory: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return rec, true, nil
	}

	existing, err := r.Find(ctx, rec.UserID, rec.ID)
	if err != nil {
		return types.MemoryRecord{}, false, err
	}
	if existing == nil {
		return types.MemoryRecord{}, false, fmt.Errorf("memory %s/%s vanished after conflict", rec.UserID, rec.ID)
	}
	return *existing, false, nil
}

func (r *MemoryRepo) Find(ctx context.Context, userID, id string) (*types.MemoryRecord, error) {
	var record memoryModel
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find memory: %w", err)
	}
	rec := memoryFromModel(record)
	return &rec, nil
}

// ListByUser returns the user's records oldest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]types.MemoryRecord, error) {
	var records []memoryModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	out := make([]types.MemoryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, memoryFromModel(record))
	}
	return out, nil
}

func (r *MemoryRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&memoryModel{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return count, nil
}

type similarRow struct {
	memoryModel
	Similarity float64
}

// similarityQuery scores rows by cosine similarity. pgvector returns NaN
// distance when either side is a zero vector and NULL for rows without an
// embedding; both score 0 so they rank after real matches.
const similarityQuery = `
	SELECT user_id, id, text, source, embedding, created_at,
	       CASE WHEN distance IS NULL OR distance = 'NaN'::float8 THEN 0
	            ELSE 1 - distance END AS similarity
	FROM (
		SELECT user_id, id, text, source, embedding, created_at,
		       embedding <=> ? AS distance
		FROM clarity_memories
		WHERE user_id = ?
	) AS scored
	ORDER BY similarity DESC, created_at DESC, id ASC
	LIMIT ?`

// SearchSimilar returns the topN records closest to query. Ties fall back to
// the newest record, then the smallest id.
func (r *MemoryRepo) SearchSimilar(ctx context.Context, userID string, query []float32, topN int) ([]types.ScoredMemory, error) {
	if len(query) == 0 || topN <= 0 {
		return []types.ScoredMemory{}, nil
	}
	vec := pgvector.NewVector(query)

	var rows []similarRow
	if err := r.db.WithContext(ctx).Raw(similarityQuery, vec, userID, topN).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search similar memories: %w", err)
	}

	out := make([]types.ScoredMemory, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.ScoredMemory{
			MemoryRecord: memoryFromModel(row.memoryModel),
			Similarity:   finiteSimilarity(row.Similarity),
		})
	}
	return out, nil
}

func finiteSimilarity(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func memoryToModel(rec types.MemoryRecord) memoryModel {
	var vector *pgvector.Vector
	if len(rec.Embedding) > 0 {
		v := pgvector.NewVector(rec.Embedding)
		vector = &v
	}
	return memoryModel{
		UserID:    rec.UserID,
		ID:        rec.ID,
		Text:      rec.Text,
		Source:    string(rec.Source),
		Embedding: vector,
		CreatedAt: rec.CreatedAt,
	}
}

// memoryFromModel converts database model to domain struct.
func memoryFromModel(model memoryModel) types.MemoryRecord {
	rec := types.MemoryRecord{
		ID:        model.ID,
		UserID:    model.UserID,
		Text:      model.Text,
		Source:    types.MemorySource(model.Source),
		CreatedAt: model.CreatedAt,
	}
	if model.Embedding != nil {
		rec.Embedding = model.Embedding.Slice()
	}
	return rec
}

// marshalJSON encodes a value into JSONB, returning nil for empty values.
func marshalJSON(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// unmarshalJSON decodes JSONB into the provided target.
func unmarshalJSON(data json.RawMessage, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
