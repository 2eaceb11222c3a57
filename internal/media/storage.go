package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"example.com/postfeed/internal/logger"
	"github.com/google/uuid"
)

var logg = logger.New()

const (
	DirPosts    = "posts"
	DirProfiles = "profiles"

	// MaxNameLen caps stored file names in bytes, extension included.
	MaxNameLen = 100
	maxExtLen  = 10
)

// Storage saves uploads below Root and hands out paths relative to it.
type Storage struct {
	Root string
}

func New(root string) *Storage {
	return &Storage{Root: root}
}

// Save writes r to <Root>/<dir>/<name> and returns "<dir>/<name>".
// A name that is already taken gets a short random suffix.
func (s *Storage) Save(dir, name string, r io.Reader) (string, error) {
	name = cleanName(name)
	if err := os.MkdirAll(filepath.Join(s.Root, dir), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		candidate := name
		if attempt > 0 {
			ext := path.Ext(name)
			candidate = strings.TrimSuffix(name, ext) + "_" + uuid.NewString()[:7] + ext
		}

		f, err := os.OpenFile(filepath.Join(s.Root, dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create media file: %w", err)
		}

		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write media file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close media file: %w", err)
		}

		rel := path.Join(dir, candidate)
		logg.Debug("media", "Stored upload "+rel)
		return rel, nil
	}
	return "", fmt.Errorf("no free file name for %q", name)
}

// cleanName strips directories, caps the length and falls back to a random name.
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return uuid.NewString()
	}
	return truncateName(name)
}

// truncateName shortens the stem so the name fits MaxNameLen, keeping a
// short extension and whole UTF-8 characters.
func truncateName(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	ext := path.Ext(name)
	if len(ext) > maxExtLen {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)
	keep := MaxNameLen - len(ext)
	for keep > 0 && !utf8.RuneStart(stem[keep]) {
		keep--
	}
	return stem[:keep] + ext
}
