package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

var (
	// CLILogger is used by one-shot commands (SIMPLE profile).
	CLILogger *logging.Logger

	// ServerLogger is used by the HTTP service (STRUCTURED profile).
	ServerLogger *logging.Logger
)

// InitCLILogger initializes the CLI logger.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
}

// InitServerLogger initializes the JSON server logger on stderr.
func InitServerLogger(serviceName, logLevel, environment string) {
	if strings.TrimSpace(environment) == "" {
		environment = "production"
	}

	config := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: parseLogLevel(logLevel),
		Service:      serviceName,
		Environment:  environment,
		StaticFields: map[string]any{"component": "http"},
		Middleware: []logging.MiddlewareConfig{
			{
				Name:    "correlation",
				Enabled: true,
				Order:   100,
				Config:  make(map[string]any),
			},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:   "console",
				Format: "json",
				Console: &logging.ConsoleSinkConfig{
					Stream:   "stderr",
					Colorize: false,
				},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	logger, err := logging.New(config)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}

	ServerLogger = logger
}

// Logger returns the server logger, falling back to the CLI logger. It may be nil.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

// Debug logs through Logger when one is configured.
func Debug(msg string, fields ...zap.Field) {
	if l := Logger(); l != nil {
		l.Debug(msg, fields...)
	}
}

// Info logs through Logger when one is configured.
func Info(msg string, fields ...zap.Field) {
	if l := Logger(); l != nil {
		l.Info(msg, fields...)
	}
}

// Warn logs through Logger when one is configured.
func Warn(msg string, fields ...zap.Field) {
	if l := Logger(); l != nil {
		l.Warn(msg, fields...)
	}
}

// Error logs through Logger when one is configured.
func Error(msg string, fields ...zap.Field) {
	if l := Logger(); l != nil {
		l.Error(msg, fields...)
	}
}

// Sync flushes whichever loggers are configured.
func Sync() {
	if ServerLogger != nil {
		_ = ServerLogger.Sync()
	}
	if CLILogger != nil {
		_ = CLILogger.Sync()
	}
}

func parseLogLevel(levelStr string) string {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr is used before any logger exists.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		os.Exit(int(exitCode))
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
