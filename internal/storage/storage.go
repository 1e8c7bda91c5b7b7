// Package storage persists large stage outputs (transcripts, diary notes)
// on the local filesystem, keeping the status store records small.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	transcriptionsDir = "transcriptions"
	diaryNotesDir     = "diary_notes"
)

// FileStore writes stage outputs under a root directory.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at root, creating the stage
// subdirectories if needed.
func NewFileStore(root string) (*FileStore, error) {
	for _, dir := range []string{transcriptionsDir, diaryNotesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return &FileStore{root: root}, nil
}

// SaveTranscription writes the transcript for a job and returns its path.
func (s *FileStore) SaveTranscription(jobID uuid.UUID, text string) (string, error) {
	path := filepath.Join(s.root, transcriptionsDir, jobID.String()+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("save transcription: %w", err)
	}
	return path, nil
}

// SaveDiaryNote writes the diary note for a job and returns its path.
func (s *FileStore) SaveDiaryNote(jobID uuid.UUID, note string) (string, error) {
	path := filepath.Join(s.root, diaryNotesDir, jobID.String()+".md")
	if err := os.WriteFile(path, []byte(note), 0o644); err != nil {
		return "", fmt.Errorf("save diary note: %w", err)
	}
	return path, nil
}

// Read returns the contents of a previously saved artifact. Paths outside
// the storage root are rejected.
func (s *FileStore) Read(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("resolve storage root: %w", err)
	}
	if !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path %q outside storage root", path)
	}

	b, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	return string(b), nil
}

// Remove deletes artifacts, ignoring paths that are already gone.
func (s *FileStore) Remove(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove artifact: %w", err)
		}
	}
	return nil
}
