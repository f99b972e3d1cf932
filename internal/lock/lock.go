package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// FileName is the lock file created inside the migration directory.
const FileName = ".migsquash.lock"

var ErrLocked = errors.New("migration directory is locked by another run")

// File is an exclusive lock backed by a file created with O_EXCL.
type File struct {
	fs   vfs.FileSystem
	path string
	held bool
}

func NewFile(fs vfs.FileSystem, dir string) *File {
	return &File{fs: fs, path: filepath.Join(dir, FileName)}
}

func (l *File) Acquire(owner string) error {
	if l.held {
		return nil
	}
	if _, err := l.fs.Stat(l.path); err == nil {
		return fmt.Errorf("%w: %s", ErrLocked, l.path)
	}
	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrLocked, l.path)
		}
		return err
	}
	_, werr := fmt.Fprintf(f, "%s %s\n", owner, time.Now().UTC().Format(time.RFC3339))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = l.fs.Remove(l.path)
		return werr
	}
	l.held = true
	return nil
}

func (l *File) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.fs.Remove(l.path); err != nil && !vfs.IsErrNotExist(err) {
		return err
	}
	return nil
}

func (l *File) Path() string { return l.path }
