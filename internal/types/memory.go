package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// MemorySource tags where a memory came from.
type MemorySource string

const (
	MemorySourceChat         MemorySource = "chat"
	MemorySourceJournal      MemorySource = "journal"
	MemorySourceVoiceJournal MemorySource = "voice_journal"
)

// ParseMemorySource validates a source string.
func ParseMemorySource(s string) (MemorySource, error) {
	switch src := MemorySource(strings.TrimSpace(s)); src {
	case MemorySourceChat, MemorySourceJournal, MemorySourceVoiceJournal:
		return src, nil
	default:
		return "", fmt.Errorf("%w: unknown memory source %q", ErrInvalidArgument, s)
	}
}

// MemoryRecord is an immutable piece of user text with its embedding.
type MemoryRecord struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Text      string       `json:"text"`
	Embedding []float32    `json:"-"`
	Source    MemorySource `json:"source"`
	CreatedAt time.Time    `json:"created_at"`
}

// ScoredMemory is a record ranked against a query.
type ScoredMemory struct {
	MemoryRecord
	Similarity float64 `json:"similarity"`
}

// ContentID is the content hash used as the record id.
func ContentID(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// JournalEntry is a classified journal or chat entry with the verdict that was
// applied to the profile.
type JournalEntry struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id"`
	Source      MemorySource          `json:"source"`
	Text        string                `json:"text"`
	Reflection  string                `json:"reflection,omitempty"`
	Category    string                `json:"category,omitempty"`
	Negative    bool                  `json:"negative"`
	Issues      []string              `json:"issues,omitempty"`
	Adjustments map[TraitName]float64 `json:"adjustments,omitempty"`
	GrantedXP   int                   `json:"granted_xp"`
	CreatedAt   time.Time             `json:"created_at"`
}
