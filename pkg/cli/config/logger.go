package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Logger holds CLI flags for log output configuration
type Logger struct {
	level  string
	format string
	output string
}

func (x *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Log level [debug|info|warn|error]",
			Category:    "Logging",
			Value:       "info",
			Sources:     cli.EnvVars("CASESYNC_LOG_LEVEL"),
			Destination: &x.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format [console|json]",
			Category:    "Logging",
			Value:       "console",
			Sources:     cli.EnvVars("CASESYNC_LOG_FORMAT"),
			Destination: &x.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output destination, '-' or 'stdout' for stdout, 'stderr' for stderr, otherwise a file path",
			Category:    "Logging",
			Value:       "-",
			Sources:     cli.EnvVars("CASESYNC_LOG_OUTPUT"),
			Destination: &x.output,
		},
	}
}

func (x Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", x.level),
		slog.String("format", x.format),
		slog.String("output", x.output),
	)
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// redactor hides values of struct fields tagged `masq:"secret"` and well known credential keys.
func redactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Authorization"),
		masq.WithFieldPrefix("secret_"),
	)
}

// Configure builds the process logger and installs it as the default. The returned
// function closes the log file, if any.
func (x *Logger) Configure() (func(), error) {
	closer := func() {}

	level, ok := logLevels[strings.ToLower(x.level)]
	if !ok {
		return closer, goerr.Wrap(ErrInvalidConfig, "invalid log level", goerr.V("level", x.level))
	}

	var w io.Writer
	switch x.output {
	case "-", "stdout", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		// #nosec G304 - path is provided by operator
		f, err := os.OpenFile(x.output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return closer, goerr.Wrap(err, "failed to open log file", goerr.V("path", x.output))
		}
		w = f
		closer = func() {
			if err := f.Close(); err != nil {
				logging.Default().Error("failed to close log file", "error", err)
			}
		}
	}

	var handler slog.Handler
	switch x.format {
	case "console":
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(redactor()),
			clog.WithColor(w == os.Stdout || w == os.Stderr),
			clog.WithSource(level == slog.LevelDebug),
		)
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: redactor(),
		})
	default:
		closer()
		return func() {}, goerr.Wrap(ErrInvalidConfig, "invalid log format", goerr.V("format", x.format))
	}

	logging.SetDefault(slog.New(handler))
	return closer, nil
}
