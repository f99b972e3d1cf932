package squash

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mirajehossain/migsquash/internal/checksum"
	"github.com/mirajehossain/migsquash/internal/fsutil"
	"github.com/mirajehossain/migsquash/internal/ledger"
	"github.com/mirajehossain/migsquash/internal/templates"
)

// SourceComment precedes each absorbed body in the merged migration.
const SourceComment = "\t\t\t// From migration "

var (
	newNameRe   = regexp.MustCompile(`^(\d{14})_([A-Za-z_][A-Za-z0-9_]*)$`)
	namespaceRe = regexp.MustCompile(`(?m)^\s*namespace\s+([A-Za-z_][\w.]*)`)
	dbContextRe = regexp.MustCompile(`\[DbContext\(typeof\(([A-Za-z_][\w.]*)\)\)\]`)
)

// Options configures one squash.
type Options struct {
	// Target is the path of the last migration to absorb.
	Target string
	// NewName is the merged migration id, timestamp_Name. Its timestamp is
	// expected to equal the target's; a mismatch is reported as a warning.
	NewName string

	MigrationTemplate string
	SnapshotTemplate  string
	// Templates, when set, is used instead of reading the template files.
	Templates *templates.Set

	Extract        ExtractMode
	Dialect        ledger.Dialect
	LedgerTable    string
	ProductVersion string

	DryRun bool
}

// Plan is everything a squash will do, computed without touching the
// directory. All reads and extraction happen while planning, so a failure
// here leaves the directory unchanged.
type Plan struct {
	Dir               string
	Target            fsutil.Migration
	NewID             string
	NewName           string
	PrepID            string
	PrepName          string
	Absorbed          []Absorbed
	Outputs           []Output
	Warnings          []string
	TimestampMismatch bool
}

// Output is a file the plan will write.
type Output struct {
	Path    string
	Content []byte
}

// Plan validates the inputs, reads the absorbed migrations and renders the
// four output files in memory.
func (s *Squasher) Plan(opts Options) (*Plan, error) {
	if !s.store.IsFile(opts.Target) {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, opts.Target)
	}
	dir := filepath.Dir(opts.Target)
	targetFile := filepath.Base(opts.Target)
	ts, name, ok := fsutil.Parse(targetFile)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not look like <yyyyMMddHHmmss>_<Name>.cs", ErrInvalidTarget, targetFile)
	}
	target := fsutil.Migration{
		Timestamp:    ts,
		Name:         name,
		Path:         opts.Target,
		SnapshotPath: fsutil.SnapshotPath(opts.Target),
	}

	m := newNameRe.FindStringSubmatch(opts.NewName)
	if m == nil {
		return nil, fmt.Errorf("%w: %q must be <yyyyMMddHHmmss>_<Name>", ErrInvalidName, opts.NewName)
	}
	newTS, newName := m[1], m[2]
	when, err := time.Parse(fsutil.TimestampLayout, newTS)
	if err != nil {
		return nil, fmt.Errorf("%w: %q has an invalid timestamp", ErrInvalidName, opts.NewName)
	}

	p := &Plan{
		Dir:      dir,
		Target:   target,
		NewID:    opts.NewName,
		NewName:  newName,
		PrepName: newName + "_prep",
	}
	p.PrepID = when.Add(-time.Second).Format(fsutil.TimestampLayout) + "_" + p.PrepName
	if newTS != ts {
		p.TimestampMismatch = true
		p.Warnings = append(p.Warnings, fmt.Sprintf(
			"timestamp of the new migration (%s) does not match the target (%s)", newTS, ts))
	}

	mode, err := ParseExtractMode(string(opts.Extract))
	if err != nil {
		return nil, err
	}
	set, err := s.templates(opts)
	if err != nil {
		return nil, err
	}
	sql, err := ledger.Fixup{
		Dialect:        opts.Dialect,
		Table:          opts.LedgerTable,
		ProductVersion: opts.ProductVersion,
		TargetID:       target.ID(),
		NewID:          p.NewID,
	}.SQL()
	if err != nil {
		return nil, err
	}

	snapshot, err := s.store.Read(target.SnapshotPath)
	if err != nil {
		return nil, err
	}

	all, err := fsutil.ScanDir(s.store.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var up, down strings.Builder
	var downParts []string
	for _, mig := range fsutil.UpTo(all, targetFile) {
		raw, err := s.store.Read(mig.Path)
		if err != nil {
			return nil, err
		}
		b, err := Extract(splitLines(string(raw)), mode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", mig.FileName(), err)
		}
		p.Absorbed = append(p.Absorbed, Absorbed{
			Migration: mig,
			Checksum:  checksum.SHA256(raw),
			UpLines:   len(b.Up),
			DownLines: len(b.Down),
		})
		up.WriteString(section(mig, b.Up))
		downParts = append(downParts, section(mig, b.Down))
	}
	for i := len(downParts) - 1; i >= 0; i-- {
		down.WriteString(downParts[i])
	}

	ns, dbctx := snapshotContext(string(snapshot))
	values := templates.Values{
		Name:      p.NewName,
		ID:        p.NewID,
		Up:        up.String(),
		Down:      down.String(),
		Namespace: ns,
		DbContext: dbctx,
	}
	prepValues := templates.Values{
		Name:      p.PrepName,
		ID:        p.PrepID,
		Up:        "migrationBuilder.Sql(@\"" + strings.ReplaceAll(sql, `"`, `""`) + "\");",
		Namespace: ns,
		DbContext: dbctx,
	}

	newSnapshot, warn := renameSnapshot(string(snapshot), target, p.NewName, p.NewID)
	p.Warnings = append(p.Warnings, warn...)

	// The preparation migration is written after the merged one.
	base := filepath.Join(dir, p.NewID)
	prep := filepath.Join(dir, p.PrepID)
	p.Outputs = []Output{
		{Path: base + fsutil.SnapshotSuffix, Content: []byte(newSnapshot)},
		{Path: base + fsutil.MigrationExt, Content: []byte(templates.Render(set.Migration, values))},
		{Path: prep + fsutil.MigrationExt, Content: []byte(templates.Render(set.Migration, prepValues))},
		{Path: prep + fsutil.SnapshotSuffix, Content: []byte(templates.Render(set.Snapshot, prepValues))},
	}

	absorbed := p.absorbedPaths()
	for _, o := range p.Outputs {
		exists, err := s.store.Exists(o.Path)
		if err != nil {
			return nil, err
		}
		if exists && !absorbed[o.Path] {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, o.Path)
		}
		if toks := templates.Tokens(string(o.Content)); len(toks) > 0 {
			p.Warnings = append(p.Warnings, fmt.Sprintf(
				"%s still contains placeholders %s", filepath.Base(o.Path), strings.Join(toks, ", ")))
		}
	}
	if dbctx == "" && strings.Contains(set.Snapshot, templates.DbContext) {
		p.Warnings = append(p.Warnings, "target snapshot declares no [DbContext]; "+templates.DbContext+" rendered empty")
	}

	return p, nil
}

func (s *Squasher) templates(opts Options) (templates.Set, error) {
	if opts.Templates != nil {
		return *opts.Templates, nil
	}
	return templates.Load(s.store.FS, opts.MigrationTemplate, opts.SnapshotTemplate)
}

func (p *Plan) absorbedPaths() map[string]bool {
	out := make(map[string]bool, len(p.Absorbed)*2)
	for _, a := range p.Absorbed {
		out[a.Path] = true
		out[a.SnapshotPath] = true
	}
	return out
}

func section(m fsutil.Migration, body []string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(SourceComment + m.FileName() + "\n")
	for _, l := range body {
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

// renameSnapshot points the target's snapshot at the new migration.
func renameSnapshot(snapshot string, target fsutil.Migration, newName, newID string) (string, []string) {
	var warnings []string
	oldClass := "partial class " + target.Name
	oldAttr := `[Migration("` + target.ID() + `")]`
	if !strings.Contains(snapshot, oldClass) {
		warnings = append(warnings, fmt.Sprintf("target snapshot has no %q", oldClass))
	}
	if !strings.Contains(snapshot, oldAttr) {
		warnings = append(warnings, fmt.Sprintf("target snapshot has no %q", oldAttr))
	}
	snapshot = strings.ReplaceAll(snapshot, oldClass, "partial class "+newName)
	snapshot = strings.ReplaceAll(snapshot, oldAttr, `[Migration("`+newID+`")]`)
	return snapshot, warnings
}

func snapshotContext(snapshot string) (namespace, dbContext string) {
	if m := namespaceRe.FindStringSubmatch(snapshot); m != nil {
		namespace = m[1]
	}
	if m := dbContextRe.FindStringSubmatch(snapshot); m != nil {
		dbContext = m[1]
	}
	return namespace, dbContext
}
