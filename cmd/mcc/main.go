package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/xplshn/mcc/pkg/cli"
	"github.com/xplshn/mcc/pkg/codegen"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/driver"
	"github.com/xplshn/mcc/pkg/util"
)

var errDiagnostics = errors.New("errors were reported")

type options struct {
	format     string
	configFile string
	target     string
	outFile    string
	emitAsm    bool
	dumpIR     bool
	verbose    bool
	noColor    bool
}

func main() {
	app := cli.NewApp("mcc")
	app.Synopsis = "[options] <input.c> ..."
	app.Description = "Checks programs in a small C subset for declaration, scope, type, array and loop errors, and lowers clean ones to QBE."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/mcc>"
	app.Since = 2025

	var opts options
	fs := app.FlagSet
	fs.String(&opts.format, "format", "f", "text", "Diagnostic output format.", "text|json")
	fs.String(&opts.configFile, "config", "c", "", "Read feature and warning settings from a YAML file.", "file")
	fs.String(&opts.target, "target", "t", "", "Set the QBE target ABI (defaults to the host).", "target")
	fs.String(&opts.outFile, "output", "o", "", "Write assembly to <file> (implies -S).", "file")
	fs.Bool(&opts.emitAsm, "assemble", "S", false, "Generate assembly for each error free input.")
	fs.Bool(&opts.dumpIR, "dump-ir", "d", false, "Print the QBE IL of each error free input.")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Log the progress of each phase.")
	fs.Bool(&opts.noColor, "no-color", "", false, "Never color diagnostics.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		level := zerolog.WarnLevel
		if opts.verbose {
			level = zerolog.DebugLevel
		}
		log := zerolog.New(zerolog.ConsoleWriter{Out: app.Stderr, NoColor: opts.noColor}).
			Level(level).With().Str("tool", app.Name).Logger()

		if len(inputFiles) == 0 {
			return fmt.Errorf("no input files specified")
		}
		if opts.configFile != "" {
			if err := cfg.LoadFile(opts.configFile); err != nil {
				return err
			}
		}
		cfg.ApplyFlagGroups(fs, warningFlags, featureFlags)

		target := opts.target
		if target == "" {
			target = cfg.QbeTarget
		}
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			log.Warn().Err(err).Msg("target")
		}
		log.Debug().Str("target", cfg.QbeTarget).Int("files", len(inputFiles)).Msg("starting")

		return run(app.Stdout, app.Stderr, inputFiles, cfg, opts, log)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return
		}
		if !errors.Is(err, errDiagnostics) {
			fmt.Fprintf(os.Stderr, "mcc: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(stdout, stderr io.Writer, inputFiles []string, cfg *config.Config, opts options, log zerolog.Logger) error {
	var units []*driver.Unit
	var records []util.SourceFileRecord
	for i, path := range inputFiles {
		u, err := driver.ReadFile(path, i, cfg, log)
		if err != nil {
			return err
		}
		units = append(units, u)
		records = append(records, u.Record)
	}

	var all []diag.Diagnostic
	for _, u := range units {
		all = append(all, u.Diagnostics...)
	}

	switch opts.format {
	case "json":
		out := make([]diag.Record, 0, len(all))
		for _, d := range all {
			out = append(out, d.Record(records[d.Tok.FileIndex].Name))
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	case "text":
		r := util.NewReporter(stderr, records)
		if opts.noColor {
			r.SetColor(false)
		}
		r.ReportAll(all)
		if s := util.Summary(all); s != "" {
			fmt.Fprintln(stderr, s)
		}
	default:
		return fmt.Errorf("unknown format '%s'", opts.format)
	}

	if diag.CountErrors(all) > 0 {
		return errDiagnostics
	}
	if opts.dumpIR || opts.emitAsm || opts.outFile != "" {
		return emit(stdout, units, opts, log)
	}
	return nil
}

func emit(stdout io.Writer, units []*driver.Unit, opts options, log zerolog.Logger) error {
	backend := codegen.NewQBEBackend()
	for _, u := range units {
		prog, err := u.Lower()
		if err != nil {
			return fmt.Errorf("%s: %w", u.Record.Name, err)
		}
		if opts.dumpIR {
			irText, err := backend.GenerateIR(prog, u.Config)
			if err != nil {
				return fmt.Errorf("%s: backend IR generation failed: %w", u.Record.Name, err)
			}
			fmt.Fprint(stdout, irText)
			continue
		}

		asm, err := backend.Generate(prog, u.Config)
		if err != nil {
			return fmt.Errorf("%s: backend code generation failed: %w", u.Record.Name, err)
		}
		outFile := opts.outFile
		if outFile == "" || len(units) > 1 {
			outFile = strings.TrimSuffix(u.Record.Name, filepath.Ext(u.Record.Name)) + ".s"
		}
		if err := os.WriteFile(outFile, asm.Bytes(), 0o644); err != nil {
			return err
		}
		log.Debug().Str("output", outFile).Msg("wrote assembly")
	}
	return nil
}
