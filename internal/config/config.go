package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMigrationTemplate = "migrationtemplate.cs.template"
	DefaultSnapshotTemplate  = "emptysnapshottemplate.cs.template"
)

type Config struct {
	TemplateDir       string `yaml:"template_dir"`
	MigrationTemplate string `yaml:"migration_template"`
	SnapshotTemplate  string `yaml:"snapshot_template"`
	BuiltinTemplates  bool   `yaml:"builtin_templates"`
	Extract           string `yaml:"extract"`
	Dialect           string `yaml:"dialect"`
	LedgerTable       string `yaml:"ledger_table"`
	ProductVersion    string `yaml:"product_version"`
	JSON              bool   `yaml:"json"`
	DryRun            bool   `yaml:"dry_run"`
}

func Default() *Config {
	return &Config{
		TemplateDir:    "..",
		Extract:        "structural",
		Dialect:        "sqlserver",
		LedgerTable:    "__EFMigrationsHistory",
		ProductVersion: "5.0.5",
	}
}

// LoadYAML reads path from fs over the defaults. An empty path yields the
// defaults.
func LoadYAML(fs vfs.FileSystem, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := vfs.ReadFile(fs, path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func MergeEnv(cfg *Config) *Config {
	if v := os.Getenv("MIGSQUASH_TEMPLATE_DIR"); v != "" {
		cfg.TemplateDir = v
	}
	if v := os.Getenv("MIGSQUASH_EXTRACT"); v != "" {
		cfg.Extract = v
	}
	if v := os.Getenv("MIGSQUASH_DIALECT"); v != "" {
		cfg.Dialect = v
	}
	if v := os.Getenv("MIGSQUASH_LEDGER_TABLE"); v != "" {
		cfg.LedgerTable = v
	}
	if v := os.Getenv("MIGSQUASH_PRODUCT_VERSION"); v != "" {
		cfg.ProductVersion = v
	}
	if v := os.Getenv("MIGSQUASH_MIGRATION_TEMPLATE"); v != "" {
		cfg.MigrationTemplate = v
	}
	if v := os.Getenv("MIGSQUASH_SNAPSHOT_TEMPLATE"); v != "" {
		cfg.SnapshotTemplate = v
	}
	envBool("MIGSQUASH_BUILTIN_TEMPLATES", &cfg.BuiltinTemplates)
	envBool("MIGSQUASH_JSON", &cfg.JSON)
	envBool("MIGSQUASH_DRY_RUN", &cfg.DryRun)
	return cfg
}

// envBool sets *dst from a boolean variable; unparsable values are ignored.
func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// MigrationTemplatePath resolves the migration template, relative to
// TemplateDir unless an explicit path was configured.
func (c *Config) MigrationTemplatePath() string {
	if c.MigrationTemplate != "" {
		return c.MigrationTemplate
	}
	return filepath.Join(c.TemplateDir, DefaultMigrationTemplate)
}

func (c *Config) SnapshotTemplatePath() string {
	if c.SnapshotTemplate != "" {
		return c.SnapshotTemplate
	}
	return filepath.Join(c.TemplateDir, DefaultSnapshotTemplate)
}
