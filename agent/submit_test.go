package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSubmitter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "submissions")
	s, err := NewFileSubmitter(dir)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	values := map[string]string{"name": "Ada", "email": "ada@example.com"}
	require.NoError(t, s.Submit(context.Background(), "sess-1", values))

	data, err := os.ReadFile(filepath.Join(dir, "sess-1.json"))
	require.NoError(t, err)
	var got Submission
	require.NoError(t, sonic.Unmarshal(data, &got))
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, values, got.Values)
	assert.True(t, got.SubmittedAt.Equal(s.now()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSubmitter_RejectsPathIDs(t *testing.T) {
	s, err := NewFileSubmitter(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Submit(context.Background(), "../escape", nil))
	assert.Error(t, s.Submit(context.Background(), "", nil))
}
