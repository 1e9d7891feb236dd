package cmd

import (
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/completion"
	"github.com/postsmith/postsmith/internal/config"
	"github.com/postsmith/postsmith/internal/observability"
)

var (
	cfgFile   string
	envFiles  []string
	verbose   bool
	traceFile string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Generate platform-specific social media posts",
	Long: `postsmith turns a topic into a ready-to-publish post for X (Twitter) or
LinkedIn using an OpenAI-compatible chat completion API.

Run "postsmith serve" for the web form and JSON API, or "postsmith generate"
for a one-shot post from the terminal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep telemetry quiet until serve installs the Prometheus-backed system.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initCLI)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config/postsmith.yaml, then "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace completion requests/responses to NDJSON file")
}

// initCLI sets up the CLI logger and optional completion tracing.
func initCLI() {
	observability.InitCLILogger(config.AppName, verbose)

	if traceFile != "" {
		// The file stays open for the life of the process.
		if _, err := completion.EnableTracing(traceFile); err != nil {
			observability.CLILogger.Warn("Failed to enable tracing", zap.Error(err))
		} else {
			observability.CLILogger.Debug("Completion tracing enabled", zap.String("file", traceFile))
		}
	}
}

// loadConfig reads configuration using the global flags plus overrides.
func loadConfig(overrides map[string]any) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		ConfigFile: cfgFile,
		EnvFiles:   envFiles,
		Overrides:  overrides,
	})
}
