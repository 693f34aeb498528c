// Package commands implements the gitport CLI command handlers.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/observability"
	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
)

// Process exit codes.
const (
	ExitSuccess  = 0
	ExitPartial  = 1
	ExitFailed   = 2
	ExitBadInput = 3
)

// Classification sentinels for exit-code mapping.
var (
	// ErrPartial marks a run that finished with warnings.
	ErrPartial = errors.New("completed with warnings")
	// ErrFailed marks a run that did not complete.
	ErrFailed = errors.New("migration failed")
	// ErrBadInput marks invalid configuration or flags.
	ErrBadInput = errors.New("bad input")
)

// ExitCode maps a command error to the process exit code. Errors no
// command classified are flag or usage mistakes, so they count as bad
// input.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrPartial):
		return ExitPartial
	case errors.Is(err, ErrFailed):
		return ExitFailed
	default:
		return ExitBadInput
	}
}

// GlobalFlags are shared by every migration command.
type GlobalFlags struct {
	ConfigPath  string
	Project     string
	Group       string
	Org         string
	Artifacts   string
	RunID       string
	Verbose     bool
	JSONLogs    bool
	MetricsAddr string
}

// Register binds the shared flags onto a command.
func (f *GlobalFlags) Register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.ConfigPath, "config", "c", "", "config file path (default .gitport.yaml)")
	cmd.PersistentFlags().StringVar(&f.Project, "project", "", "source project path, e.g. group/widget")
	cmd.PersistentFlags().StringVar(&f.Group, "group", "", "source group path for whole-group runs")
	cmd.PersistentFlags().StringVar(&f.Org, "org", "", "destination organization")
	cmd.PersistentFlags().StringVar(&f.Artifacts, "artifacts", "", "artifact root directory")
	cmd.PersistentFlags().StringVar(&f.RunID, "run-id", "", "run identifier (default: derived from the current time)")
	cmd.PersistentFlags().BoolVarP(&f.Verbose, "verbose", "v", false, "verbose logging")
	cmd.PersistentFlags().BoolVar(&f.JSONLogs, "json-logs", false, "JSON log output")
	cmd.PersistentFlags().StringVar(&f.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

// session is everything a command needs to run: validated config plus
// the observability stack.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// newSession loads and validates config, applies flag overrides, and
// builds the logger and optional metrics endpoint.
func newSession(flags *GlobalFlags) (*session, error) {
	loaded, loadErr := config.LoadUnvalidated(flags.ConfigPath)
	if loadErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, loadErr)
	}

	cfg := *loaded
	applyOverrides(&cfg, flags)

	if cfg.RunID == "" {
		cfg.RunID = "run-" + time.Now().UTC().Format("20060102-150405")
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, validateErr)
	}

	obsCfg := observability.DefaultConfig()
	if flags.Verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	obsCfg.LogJSON = flags.JSONLogs

	s := &session{
		cfg:    cfg,
		logger: observability.NewLogger(os.Stderr, obsCfg),
	}

	if flags.MetricsAddr != "" {
		if err := s.serveMetrics(flags.MetricsAddr); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func applyOverrides(cfg *config.Config, flags *GlobalFlags) {
	if flags.Project != "" {
		cfg.GitLab.ProjectPath = flags.Project
	}

	if flags.Group != "" {
		cfg.GitLab.GroupPath = flags.Group
	}

	if flags.Org != "" {
		cfg.GitHub.Org = flags.Org
	}

	if flags.Artifacts != "" {
		cfg.Artifacts.Root = flags.Artifacts
	}

	if flags.RunID != "" {
		cfg.RunID = flags.RunID
	}
}

// serveMetrics exposes /metrics in the background for the lifetime of
// the process.
func (s *session) serveMetrics(addr string) error {
	handler, provider, err := observability.PrometheusHandler()
	if err != nil {
		return fmt.Errorf("metrics setup: %w", err)
	}

	metrics, metricsErr := observability.NewMetrics(provider.Meter("gitport"))
	if metricsErr != nil {
		return fmt.Errorf("metrics setup: %w", metricsErr)
	}

	s.metrics = metrics

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	go func() {
		if serveErr := http.ListenAndServe(addr, mux); serveErr != nil {
			s.logger.Warn("metrics endpoint stopped", "error", serveErr)
		}
	}()

	return nil
}

// runMode executes one pipeline mode end to end and maps the outcome
// to an exit-code error.
func runMode(cmd *cobra.Command, flags *GlobalFlags, mode pipeline.Mode, opts modeOptions) error {
	s, err := newSession(flags)
	if err != nil {
		return err
	}

	pipe, buildErr := pipeline.New(s.cfg, s.logger, s.metrics, nil, nil)
	if buildErr != nil {
		return fmt.Errorf("%w: %v", ErrFailed, buildErr)
	}

	inputs, inputsErr := parseInputs(opts.Inputs)
	if inputsErr != nil {
		return inputsErr
	}

	pipe.Inputs = inputs
	pipe.ResumeFromActionID = opts.ResumeActionID
	pipe.StageCallback = func(stage string) {
		s.logger.Info("stage starting", "stage", stage)
	}

	result, runErr := pipe.Run(cmd.Context(), mode, opts.ResumeFrom)

	printRunSummary(cmd.OutOrStdout(), result)

	return statusErr(result.Status, runErr)
}

// modeOptions are the per-command knobs of runMode.
type modeOptions struct {
	ResumeFrom     string
	ResumeActionID int
	Inputs         []string
}

// parseInputs turns repeated KEY=VALUE flags into the apply input map.
func parseInputs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	inputs := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: input %q is not KEY=VALUE", ErrBadInput, pair)
		}

		inputs[key] = value
	}

	return inputs, nil
}

func statusErr(status string, runErr error) error {
	switch status {
	case pipeline.StatusSuccess:
		return nil
	case pipeline.StatusPartial:
		return ErrPartial
	default:
		if runErr != nil {
			return fmt.Errorf("%w: %v", ErrFailed, runErr)
		}

		return ErrFailed
	}
}
