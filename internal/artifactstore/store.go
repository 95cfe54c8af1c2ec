package artifactstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
)

type Entry struct {
	Path    string
	ModTime time.Time
}

// Store is byte-level access to model artifacts.
type Store interface {
	Load(ctx context.Context, path string) ([]byte, error)
	Save(ctx context.Context, path string, data []byte) error
	// List returns entries in dir matching pattern, newest first.
	List(ctx context.Context, dir, pattern string) ([]Entry, error)
}

// FileStore keeps artifacts on the local filesystem.
type FileStore struct{}

func NewFileStore() *FileStore { return &FileStore{} }

func (FileStore) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read artifact %s", path)
	}
	return b, nil
}

// Save writes through a temp file and renames it into place, so a reader never
// sees a partially written artifact.
func (FileStore) Save(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return errors.Wrap(err, "create temp artifact")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp artifact")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp artifact")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp artifact")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename artifact to %s", path)
}

func (FileStore) List(ctx context.Context, dir, pattern string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", pattern)
	}
	out := make([]Entry, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "stat %s", m)
		}
		if fi.IsDir() {
			continue
		}
		out = append(out, Entry{Path: m, ModTime: fi.ModTime()})
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders by ModTime descending, then Path descending.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].ModTime.After(entries[j].ModTime)
		}
		return entries[i].Path > entries[j].Path
	})
}
