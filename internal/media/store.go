// Package media keeps downloaded WhatsApp attachments on local disk.
package media

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LocalStore writes files under dir and returns references under urlPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Save stores data and returns the public reference to it. filename, when
// given, is kept (without any directory part); otherwise a random name with an
// extension derived from mimeType is used.
func (s *LocalStore) Save(data []byte, mimeType, filename string) (string, error) {
	name := filepath.Base(filename)
	if filename == "" || name == "." || name == string(filepath.Separator) {
		name = uuid.NewString() + "." + Extension(mimeType)
	}

	full := filepath.Join(s.dir, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}

	log.Debug().Str("file", full).Int("bytes", len(data)).Msg("Media saved")
	return path.Join(s.urlPrefix, name), nil
}

// Extension is the mime subtype without parameters: "audio/ogg; codecs=opus" gives "ogg".
func Extension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(base), "/")
	if !ok || sub == "" {
		return "bin"
	}
	return sub
}
