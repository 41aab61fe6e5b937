package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FileBackend keeps every preference in one flat JSON object on disk.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (f *FileBackend) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return "", false, err
	}
	res := gjson.Get(doc, escapeKey(key))
	if !res.Exists() {
		return "", false, nil
	}
	return res.String(), true, nil
}

func (f *FileBackend) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("reset unreadable preferences file")
		doc = "{}"
	}
	next, err := sjson.Set(doc, escapeKey(key), value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return f.write(next)
}

func (f *FileBackend) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	if !gjson.Get(doc, escapeKey(key)).Exists() {
		return nil
	}
	next, err := sjson.Delete(doc, escapeKey(key))
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return f.write(next)
}

func (f *FileBackend) read() (string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "{}", nil
	}
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return "{}", nil
	}
	if !gjson.ValidBytes(b) {
		return "", fmt.Errorf("preferences file %s is not valid json", f.path)
	}
	return string(b), nil
}

// write replaces the file atomically so a crash never leaves half a document.
func (f *FileBackend) write(doc string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(doc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

var pathMeta = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

func escapeKey(key string) string {
	return pathMeta.Replace(key)
}
