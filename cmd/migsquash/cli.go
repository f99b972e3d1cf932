package main

import (
	"io"
	"log/slog"

	"github.com/alecthomas/kong"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/mirajehossain/migsquash/internal/config"
	"github.com/mirajehossain/migsquash/internal/ledger"
	"github.com/mirajehossain/migsquash/internal/logger"
	"github.com/mirajehossain/migsquash/internal/squash"
	"github.com/mirajehossain/migsquash/internal/templates"
)

// CLI is the command line interface of migsquash.
type CLI struct {
	Squash    SquashCmd    `kong:"cmd,default='withargs',help='Merge every migration up to the target into one migration.'"`
	Templates TemplatesCmd `kong:"cmd,help='Write the built-in migration templates.'"`

	Config string `kong:"help='Optional YAML config path.',type='path'"`
	JSON   bool   `kong:"name='json',help='JSON logs and report.'"`
	Log    struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the logging level."`
	} `embed:"" prefix:"log-"`
	Version kong.VersionFlag `kong:"help='Output version and exit.'"`
}

// runEnv is handed to the Run method of the selected command.
type runEnv struct {
	fs     vfs.FileSystem
	cfg    *config.Config
	log    *logger.Logger
	stdout io.Writer
	result *squash.Result
}

type SquashCmd struct {
	Target  string `kong:"short='t',required,help='Last migration to include, the file path.'"`
	NewName string `kong:"short='n',name='newname',required,help='Name of the new migration without the .cs suffix: timestamp_Name. The timestamp should match the target.'"`

	TemplateDir       string `kong:"help='Directory holding the migration templates (default ..).'"`
	MigrationTemplate string `kong:"help='Path of the migration template.'"`
	SnapshotTemplate  string `kong:"help='Path of the empty snapshot template.'"`
	BuiltinTemplates  bool   `kong:"help='Use the built-in templates instead of template files.'"`
	Extract           string `kong:"help='Body extraction: structural or offset.'"`
	Dialect           string `kong:"help='SQL dialect of the ledger fix-up: sqlserver or mysql.'"`
	LedgerTable       string `kong:"help='Migration history table.'"`
	ProductVersion    string `kong:"help='ProductVersion recorded for the squashed migration.'"`
	DryRun            bool   `kong:"help='Plan only; write and delete nothing.'"`
}

// apply overrides configuration values with the flags that were set.
func (c *SquashCmd) apply(cfg *config.Config) {
	if c.TemplateDir != "" {
		cfg.TemplateDir = c.TemplateDir
	}
	if c.MigrationTemplate != "" {
		cfg.MigrationTemplate = c.MigrationTemplate
	}
	if c.SnapshotTemplate != "" {
		cfg.SnapshotTemplate = c.SnapshotTemplate
	}
	if c.BuiltinTemplates {
		cfg.BuiltinTemplates = true
	}
	if c.Extract != "" {
		cfg.Extract = c.Extract
	}
	if c.Dialect != "" {
		cfg.Dialect = c.Dialect
	}
	if c.LedgerTable != "" {
		cfg.LedgerTable = c.LedgerTable
	}
	if c.ProductVersion != "" {
		cfg.ProductVersion = c.ProductVersion
	}
	if c.DryRun {
		cfg.DryRun = true
	}
}

func (c *SquashCmd) Run(env *runEnv) error {
	c.apply(env.cfg)
	cfg := env.cfg

	mode, err := squash.ParseExtractMode(cfg.Extract)
	if err != nil {
		return err
	}
	dialect, err := ledger.ParseDialect(cfg.Dialect)
	if err != nil {
		return err
	}
	opts := squash.Options{
		Target:            c.Target,
		NewName:           c.NewName,
		MigrationTemplate: cfg.MigrationTemplatePath(),
		SnapshotTemplate:  cfg.SnapshotTemplatePath(),
		Extract:           mode,
		Dialect:           dialect,
		LedgerTable:       cfg.LedgerTable,
		ProductVersion:    cfg.ProductVersion,
		DryRun:            cfg.DryRun,
	}
	if cfg.BuiltinTemplates {
		set := templates.Builtin()
		opts.Templates = &set
	}

	env.log.Debug("squash.start", map[string]any{
		"target":   opts.Target,
		"new_name": opts.NewName,
		"extract":  string(mode),
		"dialect":  string(dialect),
		"dry_run":  opts.DryRun,
	})
	res, err := squash.New(env.fs).Run(opts)
	env.result = res
	return err
}

type TemplatesCmd struct {
	Dir   string `kong:"help='Target directory (default: the configured template directory).'"`
	Force bool   `kong:"help='Overwrite existing templates.'"`
}

func (c *TemplatesCmd) Run(env *runEnv) error {
	dir := c.Dir
	if dir == "" {
		dir = env.cfg.TemplateDir
	}
	written, err := templates.WriteDefaults(env.fs, dir, c.Force)
	for _, p := range written {
		env.log.Info("templates.write", map[string]any{"path": p})
	}
	return err
}
