package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/config"
	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/ratelimit"
)

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect or reset shared rate limit state",
	Long: `Inspect or reset per-client rate limit state held in Redis.

Only the redis backend is shared between processes; the memory backend lives
inside each running server and cannot be reached from here.`,
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients with recorded requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, closeFn, err := openSharedLimiter(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		keys, err := window.Keys(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Client", "Used", "Limit"})
		for _, key := range keys {
			used, err := window.Usage(cmd.Context(), key)
			if err != nil {
				return err
			}
			t.AppendRow(table.Row{key, used, window.Limit()})
		}
		t.AppendFooter(table.Row{"", len(keys), fmt.Sprintf("per %s", window.Window())})
		t.Render()
		return nil
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset <client>...",
	Short: "Clear recorded requests for clients",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		window, closeFn, err := openSharedLimiter(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		for _, key := range args {
			if err := window.Reset(cmd.Context(), key); err != nil {
				return err
			}
			observability.CLILogger.Info("Rate limit reset", zap.String("client", key))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rateLimitCmd)
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
}

func openSharedLimiter(cmd *cobra.Command) (*ratelimit.RedisWindow, func(), error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, nil, err
	}
	if cfg.RateLimit.Backend != config.BackendRedis {
		return nil, nil, fmt.Errorf("ratelimit.backend is %q; only the redis backend can be inspected", cfg.RateLimit.Backend)
	}

	window, client, err := openRedisWindow(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return window, func() { _ = client.Close() }, nil
}
