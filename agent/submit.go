package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/renameio/v2"
)

// Submission is the record FileSubmitter writes for each completed form.
type Submission struct {
	SessionID   string            `json:"session_id"`
	Values      map[string]string `json:"values"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// FileSubmitter writes each completed form to <dir>/<session id>.json. Files
// are replaced atomically, so readers never see a partial record.
type FileSubmitter struct {
	dir string
	now func() time.Time
}

func NewFileSubmitter(dir string) (*FileSubmitter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create submission dir: %w", err)
	}
	return &FileSubmitter{dir: dir, now: time.Now}, nil
}

func (s *FileSubmitter) Submit(ctx context.Context, sessionID string, values map[string]string) error {
	if sessionID == "" || sessionID != filepath.Base(sessionID) {
		return fmt.Errorf("invalid session id %q", sessionID)
	}
	data, err := sonic.ConfigStd.MarshalIndent(Submission{
		SessionID:   sessionID,
		Values:      values,
		SubmittedAt: s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	path := filepath.Join(s.dir, sessionID+".json")
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending submission file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write submission: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace submission file: %w", err)
	}
	return nil
}
