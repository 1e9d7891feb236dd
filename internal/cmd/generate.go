package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/output"
	"github.com/postsmith/postsmith/internal/post"
)

var generateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Generate a post from the terminal",
	Long: `Generate one post for a topic without starting the server.

The same validation, prompts and completion settings as the HTTP API apply.

Examples:
  postsmith generate "morning exercise"
  postsmith generate "remote work" --platform linkedin --output-format markdown
  postsmith generate "remote work" --output-format json --out post.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("platform", "p", string(post.DefaultPlatform), "Target platform: twitter, linkedin")
	generateCmd.Flags().String("model", "", "Model override")
	generateCmd.Flags().Duration("timeout", 0, "Completion timeout override (e.g. 45s)")
	generateCmd.Flags().StringP("output-format", "o", "table", "Output format: table, json, markdown")
	generateCmd.Flags().String("out", "", "Write output to file (default stdout)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	topic := strings.Join(args, " ")

	platform, _ := cmd.Flags().GetString("platform")
	modelOverride, _ := cmd.Flags().GetString("model")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	outPath, _ := cmd.Flags().GetString("out")

	formatFlag, _ := cmd.Flags().GetString("output-format")
	format, err := output.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	overrides := map[string]any{}
	if strings.TrimSpace(modelOverride) != "" {
		overrides["completion.model"] = modelOverride
	}
	if timeout > 0 {
		overrides["completion.timeout"] = timeout
	}

	cfg, err := loadConfig(overrides)
	if envelope := requireGenerationConfig(cmd.Context(), cfg, err); envelope != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", envelope)
		return nil
	}

	req, err := buildValidator(cfg).Validate(post.GenerationRequest{
		Topic:     topic,
		Platform:  post.Platform(platform),
		ClientKey: "cli",
	})
	if err != nil {
		var verr *post.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid request: %s", verr.Error())
		}
		return err
	}

	svc, _, err := buildService(cfg)
	if err != nil {
		return err
	}

	observability.CLILogger.Debug("Generating post",
		zap.String("platform", string(req.Platform)),
		zap.String("model", svc.Config().Model))

	result := svc.Generate(cmd.Context(), req)

	rendered, err := output.NewFormatter(format).FormatReport(&output.Report{Topic: req.Topic, Result: result})
	if err != nil {
		return err
	}

	if err := writeOutput(cmd.OutOrStdout(), outPath, rendered); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("generation failed: %s", result.Message())
	}
	return nil
}

// writeOutput prints to stdout when path is empty or "-". Files are written
// through a temp file in the same directory and renamed into place, so a
// failed run never leaves a truncated report behind.
func writeOutput(stdout io.Writer, path, rendered string) error {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		_, err := fmt.Fprintln(stdout, rendered)
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".postsmith-*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck // no-op after rename

	if _, err := fmt.Fprintln(tmp, rendered); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	observability.Info("Wrote output", zap.String("path", path))
	return nil
}
