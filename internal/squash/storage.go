package squash

import (
	"fmt"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// Storage is the migration directory as seen by the squasher.
type Storage struct {
	FS vfs.FileSystem
}

func (s *Storage) IsFile(path string) bool {
	fi, err := s.FS.Stat(path)
	return err == nil && !fi.IsDir()
}

func (s *Storage) Exists(path string) (bool, error) {
	ok, err := vfs.Exists(s.FS, path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return ok, nil
}

func (s *Storage) Read(path string) ([]byte, error) {
	b, err := vfs.ReadFile(s.FS, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

func (s *Storage) Write(path string, content []byte) error {
	if err := vfs.WriteFile(s.FS, path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Remove deletes path. When missingOK is set a file that is already gone is
// reported as not removed instead of failing.
func (s *Storage) Remove(path string, missingOK bool) (bool, error) {
	err := s.FS.Remove(path)
	if err == nil {
		return true, nil
	}
	if missingOK && vfs.IsErrNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("remove %s: %w", path, err)
}
