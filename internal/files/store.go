// Package files is the flat on-disk document store behind the upload and
// /uploads endpoints. Keys are generated, never caller-controlled.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"onboard/internal/domain"
)

type Store struct {
	Dir string
}

// sanitize keeps the original name readable in the key while stripping
// anything that could escape the store directory.
func sanitize(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// Save writes one uploaded file under a generated key and returns its
// document record, minus the uploadedAt/uploadedBy fields the engine fills.
func (s Store) Save(originalName, mimeType string, r io.Reader) (domain.Document, error) {
	key := uuid.New().String() + "-" + sanitize(originalName)
	path := filepath.Join(s.Dir, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return domain.Document{}, fmt.Errorf("create %s: %w", key, err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return domain.Document{}, fmt.Errorf("write %s: %w", key, err)
	}
	return domain.Document{
		OriginalName: originalName,
		FileName:     key,
		URL:          "/uploads/" + key,
		MimeType:     mimeType,
		Size:         size,
	}, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s Store) Remove(key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path maps a key back to its on-disk location. Keys containing path
// separators are rejected.
func (s Store) Path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid file key %q", key)
	}
	return filepath.Join(s.Dir, key), nil
}
