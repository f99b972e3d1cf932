package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/mirajehossain/migsquash/internal/checksum"
	"github.com/mirajehossain/migsquash/internal/config"
	"github.com/mirajehossain/migsquash/internal/ledger"
	"github.com/mirajehossain/migsquash/internal/lock"
	"github.com/mirajehossain/migsquash/internal/logger"
	"github.com/mirajehossain/migsquash/internal/squash"
)

const (
	exitOK        = 0
	exitLocked    = 3
	exitFail      = 4
	exitPlanError = 5
)

var version = "dev"

func main() {
	os.Exit(run(
		os.Args[1:],
		osfs.New(),
		colorable.NewColorable(os.Stdout),
		colorable.NewColorable(os.Stderr),
		isatty.IsTerminal(os.Stderr.Fd()),
	))
}

func run(args []string, fs vfs.FileSystem, stdout, stderr io.Writer, color bool) int {
	var (
		cli      CLI
		exited   bool
		exitCode int
	)
	parser, err := kong.New(&cli,
		kong.Name("migsquash"),
		kong.Description("Squash a range of EF Core migrations into a single migration."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exited, exitCode = true, code }),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true, Summary: true}),
		kong.Vars{"version": "migsquash " + version},
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFail
	}
	kctx, err := parser.Parse(args)
	if exited {
		return exitCode
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitPlanError
	}

	cfg, err := config.LoadYAML(fs, cli.Config)
	if err != nil {
		fmt.Fprintf(stderr, "load config %s: %v\n", cli.Config, err)
		return exitPlanError
	}
	cfg = config.MergeEnv(cfg)
	if cli.JSON {
		cfg.JSON = true
	}

	log := logger.New(stderr, cfg.JSON, color && !cfg.JSON, cli.Log.Level)
	env := &runEnv{fs: fs, cfg: cfg, log: log, stdout: stdout}

	err = kctx.Run(env)
	if env.result != nil {
		report(env.result, log, stdout)
	}
	if err != nil {
		return fail(err, log)
	}
	return exitOK
}

// fail logs err and maps it to an exit code.
func fail(err error, log *logger.Logger) int {
	fields := map[string]any{"error": err.Error()}
	switch {
	case errors.Is(err, squash.ErrTargetNotFound):
		log.Error("shutting down: could not find the target migration", fields)
		return exitPlanError
	case errors.Is(err, squash.ErrInvalidName),
		errors.Is(err, squash.ErrInvalidTarget),
		errors.Is(err, squash.ErrOutputExists),
		errors.Is(err, squash.ErrUnknownExtractMode),
		errors.Is(err, ledger.ErrUnknownDialect):
		log.Error("invalid input", fields)
		return exitPlanError
	case errors.Is(err, lock.ErrLocked):
		log.Error("failed to acquire lock", fields)
		return exitLocked
	default:
		log.Error("command failed", fields)
		return exitFail
	}
}

func report(res *squash.Result, log *logger.Logger, stdout io.Writer) {
	for _, w := range res.Warnings {
		log.Warn("squash.warning", map[string]any{"warning": w})
	}
	for _, a := range res.Absorbed {
		log.Debug("squash.absorb", map[string]any{
			"version":    a.Timestamp,
			"name":       a.Name,
			"checksum":   checksum.Short(a.Checksum),
			"up_lines":   a.UpLines,
			"down_lines": a.DownLines,
		})
	}
	for _, f := range res.Written {
		log.Debug("squash.write", map[string]any{"path": f.Path, "checksum": checksum.Short(f.Checksum)})
	}
	for _, p := range res.Removed {
		log.Debug("squash.remove", map[string]any{"path": p})
	}
	log.Info("squash complete", map[string]any{
		"target":   res.TargetID,
		"new":      res.NewID,
		"prep":     res.PrepID,
		"absorbed": len(res.Absorbed),
		"written":  len(res.Written),
		"removed":  len(res.Removed),
		"dry_run":  res.DryRun,
	})
	printReport(res, log, stdout)
}

func printReport(res *squash.Result, log *logger.Logger, stdout io.Writer) {
	type item struct {
		Version  string `json:"version"`
		Name     string `json:"name"`
		Checksum string `json:"checksum"`
		Up       int    `json:"up_lines"`
		Down     int    `json:"down_lines"`
	}
	type output struct {
		Path     string `json:"path"`
		Checksum string `json:"checksum"`
	}
	out := struct {
		Target            string   `json:"target"`
		New               string   `json:"new"`
		Prep              string   `json:"prep"`
		DryRun            bool     `json:"dry_run"`
		TimestampMismatch bool     `json:"timestamp_mismatch"`
		Absorbed          []item   `json:"absorbed"`
		Written           []output `json:"written"`
		Removed           []string `json:"removed"`
		Warnings          []string `json:"warnings"`
	}{
		Target: res.TargetID, New: res.NewID, Prep: res.PrepID,
		DryRun: res.DryRun, TimestampMismatch: res.TimestampMismatch,
		Removed: res.Removed, Warnings: res.Warnings,
	}
	for _, a := range res.Absorbed {
		out.Absorbed = append(out.Absorbed, item{
			Version: a.Timestamp, Name: a.Name, Checksum: a.Checksum, Up: a.UpLines, Down: a.DownLines,
		})
	}
	for _, f := range res.Written {
		out.Written = append(out.Written, output{Path: f.Path, Checksum: f.Checksum})
	}

	if log.JSONEnabled() {
		enc := json.NewEncoder(stdout)
		_ = enc.Encode(out)
		return
	}
	rows := make([][]string, 0, len(out.Absorbed))
	for _, it := range out.Absorbed {
		rows = append(rows, []string{
			it.Version, it.Name, strconv.Itoa(it.Up), strconv.Itoa(it.Down), checksum.Short(it.Checksum),
		})
	}
	if err := renderTable([]string{"VERSION", "NAME", "UP", "DOWN", "CHECKSUM"}, rows, stdout); err != nil {
		log.Warn("render table failed", map[string]any{"error": err.Error()})
	}
	for _, f := range out.Written {
		verb := "wrote"
		if out.DryRun {
			verb = "would write"
		}
		fmt.Fprintf(stdout, "%s %s\n", verb, filepath.Base(f.Path))
	}
	for _, p := range out.Removed {
		verb := "removed"
		if out.DryRun {
			verb = "would remove"
		}
		fmt.Fprintf(stdout, "%s %s\n", verb, filepath.Base(p))
	}
}
