// app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dalemusser/mongocrud/config"
	"github.com/dalemusser/mongocrud/logging"
	"github.com/dalemusser/mongocrud/metrics"
	"go.uber.org/zap"
)

// ErrConfig marks a configuration that loaded but failed validation.
var ErrConfig = errors.New("invalid configuration")

// Env is what a command gets to work with once startup is done.
type Env struct {
	Config  *config.CoreConfig
	Args    []string // positional arguments left after flag parsing
	Logger  *zap.Logger
	Console *logging.Console
	Metrics *metrics.Recorder
}

// Command is one mongocrud subcommand.
type Command struct {
	// Name is used only for logging/diagnostics.
	Name string

	// Execute runs the command. Its error is returned from Run unchanged.
	Execute func(ctx context.Context, env *Env) error
}

// Run executes the standard startup sequence around cmd:
//
//  1. Bootstrap logger
//  2. Load config from args, env, config files and defaults
//  3. Build final logger based on config
//  4. Build the metrics recorder
//  5. Wire shutdown signals to a context
//  6. Execute the command
//  7. Write the metrics textfile, if configured
//
// Narration goes to stdout, failures to stderr. Help and usage errors come
// back as config.ErrHelp and *config.UsageError; any other load failure
// wraps ErrConfig.
func Run(ctx context.Context, cmd Command, args []string, stdout, stderr io.Writer) error {
	// 1) Bootstrap logger for early startup
	bootstrap := logging.BootstrapLogger()
	defer bootstrap.Sync()

	// 2) Load config
	cfg, rest, err := config.Load(bootstrap, args)
	if err != nil {
		var ue *config.UsageError
		if errors.Is(err, config.ErrHelp) || errors.As(err, &ue) {
			return err
		}
		bootstrap.Error("config load failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	// 3) Build final logger
	logger := logging.MustBuildLogger(cfg.LogLevel, cfg.Env)
	defer logger.Sync()
	logger.Debug("config loaded", zap.String("command", cmd.Name), zap.String("config", cfg.Dump()))

	// 4) Metrics recorder (Go, process, operation counters)
	rec := metrics.NewRecorder(logger)

	// 5) Wire shutdown signals → context
	ctx, cancel := WithShutdownSignals(ctx, logger)
	defer cancel()

	// 6) Execute
	env := &Env{
		Config:  cfg,
		Args:    rest,
		Logger:  logger.With(zap.String("command", cmd.Name)),
		Console: logging.NewConsole(stdout, stderr),
		Metrics: rec,
	}
	err = cmd.Execute(ctx, env)
	if err != nil {
		logger.Debug("command failed", zap.String("command", cmd.Name), zap.Error(err))
	}

	// 7) Metrics textfile
	if cfg.MetricsTextfile != "" {
		if werr := rec.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			logger.Warn("cannot write metrics textfile", zap.String("path", cfg.MetricsTextfile), zap.Error(werr))
		} else {
			logger.Info("metrics written", zap.String("path", cfg.MetricsTextfile))
		}
	}
	return err
}
