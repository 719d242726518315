// Package validation runs the preflight checks for an sr or t2i batch and prints
// them as a colored checklist.
package validation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"go_superres/core"
	"go_superres/refiner"
	"go_superres/sdruntime"
	"go_superres/tiling"
)

// ValidationStep is the outcome of one check.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult collects every step of one Validate call.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool // No step failed; warnings allowed
}

// Errors returns the errors of failed steps.
func (r SuiteResult) Errors() []error {
	var errs []error
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, step.Error))
		}
	}
	return errs
}

// Summary returns a one-line description of the result.
func (r SuiteResult) Summary() string {
	if r.Success {
		return fmt.Sprintf("%d/%d checks passed (%d warnings)", r.PassedSteps, r.TotalSteps, r.Warnings)
	}
	return fmt.Sprintf("%d passed, %d failed", r.PassedSteps, r.FailedSteps)
}

// ValidationSuite checks that a configuration can run a batch before any
// image is read.
type ValidationSuite struct {
	output       io.Writer
	showProgress bool
	failFast     bool
}

// NewValidationSuite returns a suite printing to stdout.
func NewValidationSuite() *ValidationSuite {
	return &ValidationSuite{output: os.Stdout, showProgress: true}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops at the first failed step.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

type check struct {
	name string
	run  func(*core.Config) ValidationStep
}

var checks = []check{
	{"Tiling Geometry", checkGeometry},
	{"Refinement Parameters", checkParams},
	{"Refiner Backend", checkBackend},
	{"Model File", checkModel},
	{"Output Directory", checkOutputDir},
	{"Disk Space", checkDiskSpace},
}

var t2iChecks = []check{
	{"Generation Parameters", checkT2IParams},
	{"Refiner Backend", checkT2IBackend},
	{"Model File", checkModel},
	{"Output Directory", checkT2IOutputDir},
	{"Disk Space", checkT2IDiskSpace},
}

// Validate runs every super-resolution check against cfg. Disk space
// shortfalls are warnings; everything else fails the suite.
func (s *ValidationSuite) Validate(cfg *core.Config) SuiteResult {
	return s.run("Super-Resolution Preflight", checks, cfg)
}

// ValidateT2I runs the text-to-image checks against cfg.
func (s *ValidationSuite) ValidateT2I(cfg *core.Config) SuiteResult {
	return s.run("Text-to-Image Preflight", t2iChecks, cfg)
}

func (s *ValidationSuite) run(title string, list []check, cfg *core.Config) SuiteResult {
	start := time.Now()
	if s.showProgress {
		s.printHeader(title)
	}

	steps := make([]ValidationStep, 0, len(list))
	for _, c := range list {
		t := time.Now()
		step := c.run(cfg)
		step.Name = c.name
		step.Latency = time.Since(t)
		steps = append(steps, step)

		if s.showProgress {
			s.printStep(step)
		}
		if s.failFast && step.Status == StepFailed {
			break
		}
	}

	result := buildResult(steps, start)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func passed(msg string) ValidationStep { return ValidationStep{Status: StepPassed, Message: msg} }

func failed(err error) ValidationStep {
	return ValidationStep{Status: StepFailed, Message: err.Error(), Error: err}
}

func checkGeometry(cfg *core.Config) ValidationStep {
	g, err := tiling.NewGeometry(cfg.TargetSize, cfg.TileSize)
	if err != nil {
		return failed(err)
	}
	return passed(fmt.Sprintf("%d canvas, %d tiles, %d px overlap", g.TargetSize, g.TileSize, g.Overlap))
}

func checkParams(cfg *core.Config) ValidationStep {
	p := refiner.ParamsFromConfig(cfg)
	if err := p.Validate(); err != nil {
		return failed(err)
	}
	return passed(fmt.Sprintf("strength %.2f, %d steps, seed %d", p.Strength, p.Steps, p.Seed))
}

func checkBackend(cfg *core.Config) ValidationStep {
	return backendStep(cfg, cfg.Validate())
}

func checkT2IBackend(cfg *core.Config) ValidationStep {
	return backendStep(cfg, cfg.ValidateT2I())
}

// backendStep fails the local backend when the binary carries no
// stable-diffusion engine, so the batch stops before any image is read.
func backendStep(cfg *core.Config, err error) ValidationStep {
	if err != nil {
		return failed(err)
	}
	if cfg.Backend != core.BackendLocal {
		return passed(cfg.Backend)
	}
	if !sdruntime.EngineLinked() {
		return failed(fmt.Errorf("%w: rebuild with CGO_ENABLED=1 and -tags sd, or use --backend identity|openai",
			sdruntime.ErrEngineNotLinked))
	}
	return passed(cfg.Backend + " (" + sdruntime.GetBackendInfo() + ")")
}

func checkT2IParams(cfg *core.Config) ValidationStep {
	t := cfg.T2I
	if t.Count < 1 {
		return failed(core.ErrInvalidParams("SR_T2I_NUMS", fmt.Sprintf("%d must be at least 1", t.Count)))
	}
	base := sdruntime.Txt2ImgParams{
		Prompt:         cfg.Prompts.Base,
		NegativePrompt: cfg.Prompts.Negative,
		Width:          t.Width,
		Height:         t.Height,
		Steps:          t.BaseSteps,
		CFGScale:       t.BaseGuidance,
	}
	if err := sdruntime.ValidateTxt2ImgParams(base); err != nil {
		return failed(err)
	}
	refine := refiner.Params{
		Prompt:         cfg.Prompts.Refine,
		NegativePrompt: cfg.Prompts.Negative,
		Strength:       t.RefineStrength,
		GuidanceScale:  t.RefineGuidance,
		Steps:          t.RefineSteps,
	}
	if err := refine.Validate(); err != nil {
		return failed(err)
	}
	return passed(fmt.Sprintf("%d × %dx%d, %d+%d steps, strength %.2f",
		t.Count, t.Width, t.Height, t.BaseSteps, t.RefineSteps, t.RefineStrength))
}

func checkModel(cfg *core.Config) ValidationStep {
	if cfg.Backend != core.BackendLocal {
		return ValidationStep{Status: StepSkipped, Message: "not used by the " + cfg.Backend + " backend"}
	}
	if err := CheckFileExists(cfg.ModelPath); err != nil {
		return failed(err)
	}
	return passed(cfg.ModelPath)
}

func checkOutputDir(cfg *core.Config) ValidationStep {
	return writableStep(cfg.OutputDir)
}

func checkT2IOutputDir(cfg *core.Config) ValidationStep {
	return writableStep(cfg.T2I.OutputDir)
}

func writableStep(dir string) ValidationStep {
	if err := CheckWritableDir(dir); err != nil {
		return failed(err)
	}
	return passed(dir)
}

func checkDiskSpace(cfg *core.Config) ValidationStep {
	return diskSpaceStep(cfg.OutputDir, OutputBytesPerImage(cfg.TargetSize))
}

func checkT2IDiskSpace(cfg *core.Config) ValidationStep {
	t := cfg.T2I
	need := uint64(max(t.Width, 0)) * uint64(max(t.Height, 0)) * 4 * uint64(max(t.Count, 0))
	return diskSpaceStep(t.OutputDir, need)
}

func diskSpaceStep(dir string, need uint64) ValidationStep {
	info, err := GetDiskSpace(dir)
	if err != nil {
		return ValidationStep{Status: StepWarning, Message: err.Error(), Error: err}
	}
	if info.Free < need {
		err := &DiskSpaceError{Path: info.Path, Required: need, Available: info.Free}
		return ValidationStep{Status: StepWarning, Message: err.Error(), Error: err}
	}
	return passed(humanize.IBytes(info.Free) + " free")
}

func buildResult(steps []ValidationStep, start time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(start),
		Success:    true,
	}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" && step.Status != StepFailed {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		msg := strings.ReplaceAll(step.Error.Error(), "\n", " ")
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", msg)
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	dim := color.New(color.FgHiBlack)
	if result.Success {
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprint(s.output, "━━━ Preflight Passed ")
		dim.Fprintf(s.output, "(%s in %v)", result.Summary(), result.Duration.Round(time.Millisecond))
		ok.Fprintln(s.output, " ━━━")
	} else {
		bad := color.New(color.FgRed, color.Bold)
		bad.Fprint(s.output, "━━━ Preflight Failed ")
		dim.Fprintf(s.output, "(%s)", result.Summary())
		bad.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}
