// Package squash folds a range of EF Core style migrations into a single
// migration plus a preparation migration that rewrites the history ledger.
//
// Migrations are selected and ordered by file name. The fixed width
// yyyyMMddHHmmss prefix makes string order equal chronological order; a
// directory whose file names break that contract is squashed in the wrong
// order.
package squash

import (
	"errors"
	"os/user"
	"path/filepath"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/mirajehossain/migsquash/internal/checksum"
	"github.com/mirajehossain/migsquash/internal/lock"
)

var (
	ErrTargetNotFound = errors.New("target migration not found")
	ErrInvalidTarget  = errors.New("invalid target migration")
	ErrInvalidName    = errors.New("invalid new migration name")
	ErrOutputExists   = errors.New("output would overwrite a migration outside the squashed range")
)

type Squasher struct {
	store *Storage
	owner string
}

func New(fs vfs.FileSystem) *Squasher {
	return &Squasher{store: &Storage{FS: fs}, owner: defaultOwner()}
}

func defaultOwner() string {
	u, err := user.Current()
	if err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// Run plans the squash and, unless opts.DryRun is set, applies it while
// holding the directory lock.
func (s *Squasher) Run(opts Options) (res *Result, err error) {
	if !opts.DryRun && s.store.IsFile(opts.Target) {
		l := lock.NewFile(s.store.FS, filepath.Dir(opts.Target))
		if err := l.Acquire(s.owner); err != nil {
			return nil, err
		}
		defer func() {
			if rerr := l.Release(); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}

	p, err := s.Plan(opts)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return p.preview(), nil
	}
	return s.Apply(p)
}

// Apply writes every output of the plan and only then deletes the absorbed
// migrations and their snapshots. A failed write leaves all sources in
// place; a failed delete stops with the files removed so far reported.
func (s *Squasher) Apply(p *Plan) (*Result, error) {
	res := p.result()
	for _, o := range p.Outputs {
		if err := s.store.Write(o.Path, o.Content); err != nil {
			return res, err
		}
		res.Written = append(res.Written, File{Path: o.Path, Checksum: checksum.SHA256(o.Content)})
	}

	keep := p.outputPaths()
	for _, a := range p.Absorbed {
		for _, path := range []string{a.Path, a.SnapshotPath} {
			if keep[path] {
				continue
			}
			removed, err := s.store.Remove(path, path == a.SnapshotPath)
			if err != nil {
				return res, err
			}
			if removed {
				res.Removed = append(res.Removed, path)
			}
		}
	}
	return res, nil
}

func (p *Plan) result() *Result {
	return &Result{
		Dir:               p.Dir,
		TargetID:          p.Target.ID(),
		NewID:             p.NewID,
		PrepID:            p.PrepID,
		Absorbed:          p.Absorbed,
		Warnings:          p.Warnings,
		TimestampMismatch: p.TimestampMismatch,
	}
}

// preview reports what Apply would do.
func (p *Plan) preview() *Result {
	res := p.result()
	res.DryRun = true
	for _, o := range p.Outputs {
		res.Written = append(res.Written, File{Path: o.Path, Checksum: checksum.SHA256(o.Content)})
	}
	keep := p.outputPaths()
	for _, a := range p.Absorbed {
		for _, path := range []string{a.Path, a.SnapshotPath} {
			if !keep[path] {
				res.Removed = append(res.Removed, path)
			}
		}
	}
	return res
}

func (p *Plan) outputPaths() map[string]bool {
	out := make(map[string]bool, len(p.Outputs))
	for _, o := range p.Outputs {
		out[o.Path] = true
	}
	return out
}
