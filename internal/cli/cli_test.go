package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeaico/mirror-clarity/internal/types"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CLARITY_DATA_DIR", t.TempDir())
	t.Setenv("CLARITY_EMBEDDING_PROVIDER", "hash")
	t.Setenv("CLARITY_DATABASE_URL", "")
	t.Setenv("CLARITY_REDIS_ADDR", "")
	t.Setenv("CLARITY_SIGNAL_PROVIDER", "")
	t.Setenv("CLARITY_LOG_LEVEL", "error")
	t.Setenv("CLARITY_USER", "tester")
	t.Cleanup(func() {
		configPath, userFlag = "", ""
		RootCmd.SetArgs(nil)
		RootCmd.SetOut(nil)
	})
}

func run(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	if err := RootCmd.Execute(); err != nil {
		return nil, err
	}
	var body map[string]any
	if out.Len() > 0 && bytes.TrimSpace(out.Bytes())[0] == '{' {
		require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	}
	return body, nil
}

func TestQuizInputProfileFlow(t *testing.T) {
	setupEnv(t)

	body, err := run(t, "quiz", "0,0,0", "0", "0", "0")
	require.NoError(t, err)
	assert.Equal(t, true, body["assigned"])

	body, err = run(t, "input", "dm")
	require.NoError(t, err)
	assert.EqualValues(t, 25, body["granted_xp"])

	body, err = run(t, "observe", "--source", "journal", "quiet", "morning", "by", "the", "lake")
	require.NoError(t, err)
	assert.EqualValues(t, 60, body["granted_xp"])

	body, err = run(t, "profile")
	require.NoError(t, err)
	assert.Equal(t, "tester", body["user_id"])
	assert.EqualValues(t, 85, body["total_xp"])

	body, err = run(t, "prompt-context", "lake")
	require.NoError(t, err)
	memories, _ := body["memories"].([]any)
	assert.Len(t, memories, 1)
}

func TestQuizWithoutSelectionsPrintsQuestions(t *testing.T) {
	setupEnv(t)
	body, err := run(t, "quiz")
	require.NoError(t, err)
	questions, _ := body["questions"].([]any)
	assert.Len(t, questions, 6)
}

func TestInputBeforeQuizFails(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "--user", "other", "input", "journal")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrProfileNotInitialized))
}

func TestReflectNeedsClassifier(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "reflect", "today was long")
	require.Error(t, err)
}

func TestChatNeedsModelProvider(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signal_provider")
}

func TestParseSelections(t *testing.T) {
	got, err := parseSelections([]string{"0,2", "1 3"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1, 3}, got)

	_, err = parseSelections([]string{"a"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestHistoryJournalAndMemories(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "quiz", "0", "0", "0", "0", "0", "0")
	require.NoError(t, err)
	_, err = run(t, "input", "dm")
	require.NoError(t, err)
	_, err = run(t, "observe", "--source", "chat", "called", "the", "bank")
	require.NoError(t, err)
	_, err = run(t, "observe", "--source", "journal", "slept", "badly")
	require.NoError(t, err)

	body, err := run(t, "history", "--limit", "0")
	require.NoError(t, err)
	history, _ := body["history"].([]any)
	require.Len(t, history, 4)
	last, _ := history[3].(map[string]any)
	assert.Equal(t, "journal", last["source"])

	body, err = run(t, "history", "--limit", "2")
	require.NoError(t, err)
	history, _ = body["history"].([]any)
	assert.Len(t, history, 2)

	body, err = run(t, "memories", "--source", "chat", "--limit", "0")
	require.NoError(t, err)
	memories, _ := body["memories"].([]any)
	require.Len(t, memories, 1)
	first, _ := memories[0].(map[string]any)
	assert.Equal(t, "called the bank", first["text"])

	body, err = run(t, "journal", "--limit", "5")
	require.NoError(t, err)
	entries, _ := body["entries"].([]any)
	assert.Empty(t, entries)

	_, err = run(t, "memories", "--source", "fax")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
