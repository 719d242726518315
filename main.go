package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"go_superres/core"
	"go_superres/core/validation"
	"go_superres/history"
	"go_superres/logging"
	"go_superres/refiner"
	"go_superres/shutdown"
	"go_superres/superres"
	"go_superres/t2i"
)

// Command names.
const (
	cmdSR      = "sr"
	cmdT2I     = "t2i"
	cmdHistory = "history"
)

// CLI is the sr command line. Flags override the matching SR_* variables.
type CLI struct {
	Backend   string `help:"Refiner backend: identity, local or openai (SR_BACKEND)."`
	DryRun    bool   `help:"Run the full pipeline with the identity backend; no model is loaded."`
	History   string `help:"SQLite job history database (SR_HISTORY_DB)." type:"path" placeholder:"PATH"`
	NoHistory bool   `help:"Do not record job history."`

	Version kong.VersionFlag `help:"Print version information and quit."`

	SR   SRCmd      `cmd:"" default:"withargs" help:"Super-resolve images (default)."`
	T2I  T2ICmd     `cmd:"" name:"t2i" help:"Generate images from the prompt: a structure pass, then a texture pass."`
	Jobs HistoryCmd `cmd:"" name:"history" help:"List recorded jobs."`
}

// SRCmd super-resolves a file or a folder.
type SRCmd struct {
	File    string `help:"Image to super-resolve." type:"path" placeholder:"PATH"`
	Folder  string `help:"Folder whose .png/.jpg/.jpeg images are processed (SR_* outputs are skipped)." type:"path" placeholder:"DIR"`
	Output  string `help:"Output directory (SR_OUTPUT_DIR)." type:"path" placeholder:"DIR"`
	Workers int    `help:"Images processed in parallel (SR_WORKERS)."`
	Check   bool   `help:"Run the preflight checks, print them and exit."`
}

// T2ICmd generates images from the base prompt.
type T2ICmd struct {
	Nums   int    `help:"Number of images to generate (SR_T2I_NUMS)."`
	Output string `help:"Output directory (SR_T2I_OUTPUT_DIR)." type:"path" placeholder:"DIR"`
	Check  bool   `help:"Run the preflight checks, print them and exit."`
}

// HistoryCmd lists recorded jobs.
type HistoryCmd struct {
	Recent int    `help:"Number of most recent jobs to list." default:"20"`
	Batch  string `help:"List every job of one batch instead." placeholder:"ID"`
}

// commandName returns the selected top-level command.
func commandName(kongCommand string) string {
	name, _, _ := strings.Cut(kongCommand, " ")
	switch name {
	case cmdT2I, cmdHistory:
		return name
	default:
		return cmdSR
	}
}

// apply writes the flags that were set over cfg.
func (c *CLI) apply(cfg *core.Config, command string) {
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if c.DryRun {
		cfg.Backend = core.BackendIdentity
	}
	if c.History != "" {
		cfg.HistoryPath = c.History
	}
	if c.NoHistory {
		cfg.HistoryPath = ""
	}

	switch command {
	case cmdSR:
		if c.SR.Output != "" {
			cfg.OutputDir = c.SR.Output
		}
		if c.SR.Workers > 0 {
			cfg.Workers = c.SR.Workers
		}
	case cmdT2I:
		if c.T2I.Output != "" {
			cfg.T2I.OutputDir = c.T2I.Output
		}
		if c.T2I.Nums > 0 {
			cfg.T2I.Count = c.T2I.Nums
		}
	}
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	return kong.New(cli, append([]kong.Option{
		kong.Name("sr"),
		kong.Description("Tile-based super-resolution: upsample, refine four overlapping tiles, blend."),
		kong.UsageOnError(),
		kong.Vars{"version": core.GetVersionInfo()},
	}, options...)...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	command := commandName(kctx.Command())

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	cfg, err := core.ReadConfig()
	if err != nil {
		exitConfigError(err)
	}
	cli.apply(cfg, command)

	switch command {
	case cmdHistory:
		os.Exit(showHistory(context.Background(), cfg, cli.Jobs, os.Stdout, os.Stderr))
	case cmdT2I:
		if cli.T2I.Check {
			exitPreflight(validation.NewValidationSuite().ValidateT2I(cfg))
		}
		if err := cfg.ValidateT2I(); err != nil {
			exitConfigError(err)
		}
	default:
		if cli.SR.Check {
			exitPreflight(validation.NewValidationSuite().Validate(cfg))
		}
		if err := cfg.Validate(); err != nil {
			exitConfigError(err)
		}
	}

	logger, err := logging.NewLogger(cfg.DevMode, cfg.LogFile, logging.ParseLogLevel("SR_LOG_LEVEL", logging.InfoLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(core.ExitCodeError)
	}

	ctx, stop := shutdown.NotifyContext(context.Background(), logger, func() {
		_ = logger.Sync()
		os.Exit(core.ExitCodeSIGINT)
	})
	var code int
	if command == cmdT2I {
		code = runT2I(ctx, cfg, logger, os.Stdout)
	} else {
		code = run(ctx, cfg, cli.SR.File, cli.SR.Folder, logger, os.Stdout)
	}
	stop()

	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", syncErr)
	}
	os.Exit(code)
}

func exitConfigError(err error) {
	if code := core.GetErrorCode(err); code != "" {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Configuration error [%s]: %v\n", code, err)
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Configuration error: %v\n", err)
	}
	os.Exit(core.ExitCodeConfig)
}

func exitPreflight(result validation.SuiteResult) {
	if !result.Success {
		os.Exit(core.ExitCodeConfig)
	}
	os.Exit(core.ExitCodeSuccess)
}

// preflight logs every failed check and reports whether the run may start.
func preflight(result validation.SuiteResult, logger *logging.Logger) bool {
	for _, err := range result.Errors() {
		logger.Error("Preflight check failed", zap.Error(err))
	}
	return result.Success
}

// openHistory returns the recorder for cfg.HistoryPath, or nil when history
// is disabled or cannot be opened. A history failure never stops a run.
func openHistory(cfg *core.Config, cleanup *shutdown.Registry, logger *logging.Logger) superres.Recorder {
	if cfg.HistoryPath == "" {
		return nil
	}
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logger.Warn("Job history disabled", zap.String("path", cfg.HistoryPath), zap.Error(err))
		return nil
	}
	cleanup.RegisterCloser("history", shutdown.PriorityHistory, store)
	return store
}

func runCleanup(ctx context.Context, cleanup *shutdown.Registry, logger *logging.Logger) {
	logger.Debug("Running cleanup", zap.Strings("steps", cleanup.Names()))
	if err := cleanup.Run(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Cleanup failed", zap.Error(err))
	}
}

// run executes one super-resolution batch and returns the process exit code.
func run(ctx context.Context, cfg *core.Config, file, folder string, logger *logging.Logger, out io.Writer) int {
	logger.Info("Configuration loaded",
		zap.String(logging.KeyBackend, cfg.Backend),
		zap.Int("target_size", cfg.TargetSize),
		zap.Int(logging.KeyTileSize, cfg.TileSize),
		zap.Float64("strength", cfg.Strength),
		zap.Int("steps", cfg.Steps),
		zap.Uint64("seed", cfg.Seed),
		zap.Int("workers", cfg.Workers),
		zap.String("output_dir", cfg.OutputDir),
		zap.String("history", cfg.HistoryPath),
		zap.String("log_file", logger.LogFilePath()),
		zap.String("version", core.GetVersion()),
	)

	if !preflight(validation.NewValidationSuite().WithShowProgress(false).Validate(cfg), logger) {
		return core.ExitCodeConfig
	}

	cleanup := shutdown.NewRegistry()
	defer runCleanup(ctx, cleanup, logger)

	r, err := refiner.NewFromConfig(cfg)
	if err != nil {
		logger.Error("Failed to initialize refiner", zap.Error(err))
		return core.ExitCodeConfig
	}
	cleanup.Register("refiner", shutdown.PriorityRefiner, func(context.Context) error {
		return refiner.Close(r)
	})

	var opts []superres.Option
	if rec := openHistory(cfg, cleanup, logger); rec != nil {
		opts = append(opts, superres.WithRecorder(rec))
	}

	job, err := superres.NewJob(cfg, r, logger, opts...)
	if err != nil {
		logger.Error("Invalid job configuration", zap.Error(err))
		return core.ExitCodeConfig
	}

	res, err := job.Run(ctx, file, folder)
	return finish(out, res, err, logger)
}

// runT2I generates cfg.T2I.Count images and returns the process exit code.
func runT2I(ctx context.Context, cfg *core.Config, logger *logging.Logger, out io.Writer) int {
	logger.Info("Configuration loaded",
		zap.String(logging.KeyBackend, cfg.Backend),
		zap.Int("images", cfg.T2I.Count),
		zap.Int("width", cfg.T2I.Width),
		zap.Int("height", cfg.T2I.Height),
		zap.Int("base_steps", cfg.T2I.BaseSteps),
		zap.Int("refine_steps", cfg.T2I.RefineSteps),
		zap.Float64("refine_strength", cfg.T2I.RefineStrength),
		zap.String("output_dir", cfg.T2I.OutputDir),
		zap.String("history", cfg.HistoryPath),
		zap.String("log_file", logger.LogFilePath()),
		zap.String("version", core.GetVersion()),
	)

	if !preflight(validation.NewValidationSuite().WithShowProgress(false).ValidateT2I(cfg), logger) {
		return core.ExitCodeConfig
	}

	cleanup := shutdown.NewRegistry()
	defer runCleanup(ctx, cleanup, logger)

	base, r, err := t2i.NewFromConfig(cfg)
	if err != nil {
		logger.Error("Failed to initialize generator", zap.Error(err))
		return core.ExitCodeConfig
	}
	cleanup.Register("refiner", shutdown.PriorityRefiner, func(context.Context) error {
		return errors.Join(refiner.Close(r), t2i.Close(base))
	})

	var opts []t2i.Option
	if rec := openHistory(cfg, cleanup, logger); rec != nil {
		opts = append(opts, t2i.WithRecorder(rec))
	}

	job, err := t2i.NewJob(cfg, base, r, logger, opts...)
	if err != nil {
		logger.Error("Invalid job configuration", zap.Error(err))
		return core.ExitCodeConfig
	}

	res, err := job.Run(ctx, cfg.T2I.Count)
	return finish(out, res, err, logger)
}

func finish(out io.Writer, res *superres.BatchResult, err error, logger *logging.Logger) int {
	if res != nil {
		printSummary(out, res)
	}
	code := exitCode(res, err)
	if code == core.ExitCodeNoInput {
		logger.Error("No input images", zap.Error(err))
	}
	if code != core.ExitCodeSuccess {
		logger.Info("Exiting", zap.Int("code", code), zap.String("reason", core.ExitCodeName(code)))
	}
	return code
}

// showHistory prints recorded jobs and returns the process exit code.
func showHistory(ctx context.Context, cfg *core.Config, cmd HistoryCmd, out, errOut io.Writer) int {
	fail := color.New(color.FgRed, color.Bold)
	if cfg.HistoryPath == "" {
		fail.Fprintln(errOut, "Job history is disabled: set SR_HISTORY_DB or --history")
		return core.ExitCodeConfig
	}

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		fail.Fprintf(errOut, "Cannot open job history: %v\n", err)
		return core.ExitCodeError
	}
	defer store.Close()

	var entries []history.Entry
	if cmd.Batch != "" {
		entries, err = store.ByBatch(ctx, cmd.Batch)
	} else {
		entries, err = store.Recent(ctx, max(cmd.Recent, 1))
	}
	if err != nil {
		fail.Fprintf(errOut, "Cannot read job history: %v\n", err)
		return core.ExitCodeError
	}
	counts, err := store.CountByStatus(ctx)
	if err != nil {
		fail.Fprintf(errOut, "Cannot read job history: %v\n", err)
		return core.ExitCodeError
	}
	version, dirty, err := history.SchemaVersion(cfg.HistoryPath)
	if err != nil {
		fail.Fprintf(errOut, "Cannot read history schema: %v\n", err)
		return core.ExitCodeError
	}

	printHistory(out, historyView{
		Path:    cfg.HistoryPath,
		Schema:  version,
		Dirty:   dirty,
		Counts:  counts,
		Entries: entries,
	})
	return core.ExitCodeSuccess
}

// exitCode maps a batch outcome to a process exit code.
func exitCode(res *superres.BatchResult, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return core.ExitCodeSIGINT
	case errors.Is(err, superres.ErrNoInput):
		return core.ExitCodeNoInput
	case err != nil:
		return core.ExitCodeError
	case res != nil && res.Failed() > 0:
		return core.ExitCodeError
	default:
		return core.ExitCodeSuccess
	}
}
