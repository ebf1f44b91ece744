package log

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	// LogVerbosityInfo is the verbosity level for info logging.
	LogVerbosityInfo = 0
	// LogVerbosityDebug is the verbosity level for debug logging.
	LogVerbosityDebug = 2
	// LogVerbosityTrace is the verbosity level for trace logging.
	LogVerbosityTrace = 9

	// LogFormatText indicates the logging format is plain text.
	LogFormatText = "text"
	// LogFormatJSON indicates the logging format is JSON.
	LogFormatJSON = "json"

	outputStderr = "stderr"
	outputStdout = "stdout"
)

// Config represents the configuration settings for the logger.
type Config struct {
	// Verbosity specifies the logging verbosity level.
	Verbosity int
	// Format specifies the logging output format.
	Format string
	// Output specifies the destination for logging: stderr, stdout or a file path.
	Output string
}

// Configure will configure the logrus standard logger from the config.
func Configure(logConfig *Config) error {
	configureVerbosity(logConfig)

	if err := configureFormatter(logConfig); err != nil {
		return fmt.Errorf("configuring log formatter: %w", err)
	}

	if err := configureOutput(logConfig); err != nil {
		return fmt.Errorf("configuring log output: %w", err)
	}

	return nil
}

// AddFlagsToCommand adds the logging specific flags to the supplied cobra command.
func AddFlagsToCommand(cmd *cobra.Command, config *Config) {
	cmd.PersistentFlags().IntVarP(&config.Verbosity,
		"verbosity",
		"v",
		LogVerbosityInfo,
		"The verbosity level of the logging. A level of 2 and above is debug logging. A level of 9 and above is tracing.")

	cmd.PersistentFlags().StringVar(&config.Format,
		"log-format",
		LogFormatText,
		"The format of the logging output. Can be 'text' or 'json'.")

	cmd.PersistentFlags().StringVar(&config.Output,
		"log-output",
		outputStderr,
		"The output for logging. Supply a file path or one of the special values 'stderr' and 'stdout'.")
}

// GetLogger will get a logger from the supplied context or return a logger
// based on the standard logger.
func GetLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(logCtxKey{})
	if logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}

	entry, ok := logger.(*logrus.Entry)
	if !ok {
		return logrus.NewEntry(logrus.StandardLogger())
	}

	return entry
}

// WithLogger returns a context that holds the supplied logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, logCtxKey{}, logger)
}

type logCtxKey struct{}

func configureVerbosity(logConfig *Config) {
	logrus.SetLevel(logrus.InfoLevel)

	if logConfig.Verbosity >= LogVerbosityTrace {
		logrus.SetLevel(logrus.TraceLevel)
	} else if logConfig.Verbosity >= LogVerbosityDebug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func configureFormatter(logConfig *Config) error {
	switch strings.ToLower(logConfig.Format) {
	case LogFormatText:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case LogFormatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return invalidLogFormatError{format: logConfig.Format}
	}

	return nil
}

func configureOutput(logConfig *Config) error {
	switch logConfig.Output {
	case "":
		return ErrLogOutputRequired
	case outputStderr:
		logrus.SetOutput(os.Stderr)
	case outputStdout:
		logrus.SetOutput(os.Stdout)
	default:
		file, err := os.OpenFile(logConfig.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log output file %s: %w", logConfig.Output, err)
		}

		logrus.SetOutput(file)
	}

	return nil
}
