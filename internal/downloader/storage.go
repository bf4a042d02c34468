package downloader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bkmrks/internal/models"
)

const videosDir = "videos"

// Storage places downloaded files under <media root>/videos with random names.
// Paths handed out are relative to the media root and use forward slashes.
type Storage struct {
	root string
}

func NewStorage(mediaRoot string) *Storage {
	return &Storage{root: mediaRoot}
}

// Create opens a new empty file and returns it with its relative path.
func (s *Storage) Create() (*os.File, string, error) {
	dir := filepath.Join(s.root, videosDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate file name: %w", err)
	}
	name := id.String() + ".mp4"

	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create video file: %w", err)
	}
	return f, path.Join(videosDir, name), nil
}

// Path resolves a relative file reference inside the media root.
func (s *Storage) Path(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" || strings.Contains(rel, "..") {
		return "", fmt.Errorf("invalid media path %q", rel)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Storage) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return nil
}

// OnDownloadDeleted removes the file of a deleted download record.
func (s *Storage) OnDownloadDeleted(_ context.Context, d models.Download) {
	if d.File == "" {
		return
	}
	if err := s.Remove(d.File); err != nil {
		log.Error().Err(err).Str("download_id", d.ID.Hex()).Str("file", d.File).Msg("Failed to remove downloaded file")
		return
	}
	log.Info().Str("download_id", d.ID.Hex()).Str("file", d.File).Msg("Removed downloaded file")
}
