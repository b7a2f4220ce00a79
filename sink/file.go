package sink

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// FileSink writes datasets below a directory. Keys are slash separated paths
// relative to it.
type FileSink struct {
	Dir string
}

func (s FileSink) Name() string {
	return "file"
}

// Write replaces the file at key atomically: readers see either the previous
// content or data.
func (s FileSink) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path(key)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.writeError("creating directory failed", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return s.writeError("creating temporary file failed", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return s.writeError("writing temporary file failed", path, err)
	}
	if err := tmp.Close(); err != nil {
		return s.writeError("closing temporary file failed", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return s.writeError("setting file mode failed", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return s.writeError("renaming temporary file failed", path, err)
	}
	return nil
}

// Path returns the file that holds key.
func (s FileSink) Path(key string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(key))
}

func (s FileSink) writeError(msg, path string, err error) error {
	return errors.New(msg).
		WithType(ErrTypeWriteFailed).
		WithTag("sink", s.Name()).
		WithTag("path", path).
		Wrap(err)
}
