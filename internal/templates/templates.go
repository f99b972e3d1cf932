// Package templates holds the placeholder syntax used by migration templates
// and the built-in default templates.
package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

const (
	MigrationName              = "$$MIGRATIONNAME$$"
	MigrationNameWithTimestamp = "$$MIGRATIONNAMEWITHTIMESTAMP$$"
	UpContent                  = "$$UP_CONTENT$$"
	DownContent                = "$$DOWN_CONTENT$$"
	Namespace                  = "$$NAMESPACE$$"
	DbContext                  = "$$DBCONTEXT$$"
)

const (
	MigrationFile = "migrationtemplate.cs.template"
	SnapshotFile  = "emptysnapshottemplate.cs.template"
)

//go:embed migrationtemplate.cs.template emptysnapshottemplate.cs.template
var builtin embed.FS

var tokenRe = regexp.MustCompile(`\$\$[A-Z_]+\$\$`)

// Values fills the placeholders of a template.
type Values struct {
	Name      string // class name, e.g. Squashed
	ID        string // timestamped name, e.g. 20230101000000_Squashed
	Up        string
	Down      string
	Namespace string
	DbContext string
}

// Render substitutes every known placeholder in one pass. Substituted content
// is inserted verbatim and never re-scanned for placeholders.
func Render(tmpl string, v Values) string {
	r := strings.NewReplacer(
		MigrationNameWithTimestamp, v.ID,
		MigrationName, v.Name,
		UpContent, v.Up,
		DownContent, v.Down,
		Namespace, v.Namespace,
		DbContext, v.DbContext,
	)
	return r.Replace(tmpl)
}

// Tokens lists the placeholder-looking tokens left in s.
func Tokens(s string) []string {
	return tokenRe.FindAllString(s, -1)
}

// Set is a pair of migration and snapshot templates.
type Set struct {
	Migration string
	Snapshot  string
}

func Builtin() Set {
	m, err := builtin.ReadFile(MigrationFile)
	if err != nil {
		panic(err)
	}
	s, err := builtin.ReadFile(SnapshotFile)
	if err != nil {
		panic(err)
	}
	return Set{Migration: string(m), Snapshot: string(s)}
}

// Load reads both templates from fs.
func Load(fs vfs.FileSystem, migrationPath, snapshotPath string) (Set, error) {
	m, err := vfs.ReadFile(fs, migrationPath)
	if err != nil {
		return Set{}, fmt.Errorf("read migration template: %w", err)
	}
	s, err := vfs.ReadFile(fs, snapshotPath)
	if err != nil {
		return Set{}, fmt.Errorf("read snapshot template: %w", err)
	}
	return Set{Migration: string(m), Snapshot: string(s)}, nil
}

// WriteDefaults writes the built-in templates into dir. Existing files are
// kept unless force is set.
func WriteDefaults(fs vfs.FileSystem, dir string, force bool) ([]string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	set := Builtin()
	var written []string
	for _, f := range []struct{ name, body string }{
		{MigrationFile, set.Migration},
		{SnapshotFile, set.Snapshot},
	} {
		p := filepath.Join(dir, f.name)
		if !force {
			ok, err := vfs.Exists(fs, p)
			if err != nil {
				return written, err
			}
			if ok {
				return written, fmt.Errorf("%s: %w", p, os.ErrExist)
			}
		}
		if err := vfs.WriteFile(fs, p, []byte(f.body), 0o644); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}
