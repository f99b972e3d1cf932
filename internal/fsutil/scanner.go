package fsutil

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

const (
	// TimestampLayout is the 14-digit migration prefix (yyyyMMddHHmmss).
	TimestampLayout = "20060102150405"
	MigrationExt    = ".cs"
	SnapshotSuffix  = ".Designer.cs"
)

// Migration file names must sort by time when compared as strings. The fixed
// width timestamp prefix is what makes that hold.
var fileRe = regexp.MustCompile(`^(\d{14})_([^.]+)\.cs$`)

type Migration struct {
	Timestamp    string
	Name         string
	Path         string
	SnapshotPath string
}

// ID is the identifier recorded in the ledger, e.g. 20230101000000_Initial.
func (m Migration) ID() string { return m.Timestamp + "_" + m.Name }

func (m Migration) FileName() string { return m.ID() + MigrationExt }

// Parse splits a migration file name. Snapshot companions and anything not
// following the timestamp_name.cs pattern are rejected.
func Parse(fileName string) (timestamp, name string, ok bool) {
	if strings.HasSuffix(fileName, SnapshotSuffix) {
		return "", "", false
	}
	m := fileRe.FindStringSubmatch(fileName)
	if m == nil {
		return "", "", false
	}
	if _, err := time.Parse(TimestampLayout, m[1]); err != nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// SnapshotPath returns the .Designer.cs companion of a migration path.
func SnapshotPath(path string) string {
	return strings.TrimSuffix(path, MigrationExt) + SnapshotSuffix
}

// ScanDir lists the migrations in dir, ascending by file name.
func ScanDir(fs vfs.FileSystem, dir string) ([]Migration, error) {
	entries, err := vfs.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, name, ok := Parse(e.Name())
		if !ok {
			continue
		}
		p := filepath.Join(dir, e.Name())
		out = append(out, Migration{
			Timestamp:    ts,
			Name:         name,
			Path:         p,
			SnapshotPath: SnapshotPath(p),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName() < out[j].FileName() })
	return out, nil
}

// UpTo returns the migrations whose file name is lexicographically <= target.
// ms must already be sorted.
func UpTo(ms []Migration, targetFileName string) []Migration {
	out := make([]Migration, 0, len(ms))
	for _, m := range ms {
		if m.FileName() <= targetFileName {
			out = append(out, m)
		}
	}
	return out
}
