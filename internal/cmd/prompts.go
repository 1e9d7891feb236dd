package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/postsmith/postsmith/internal/prompt"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect platform prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the prompts in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadPromptRegistry()
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Platform", "Name", "Version", "Source"})
		for _, p := range registry.List() {
			t.AppendRow(table.Row{p.Config.Platform, p.Config.Name, p.Config.Version, p.Source})
		}
		t.Render()
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <platform>",
	Short: "Print a prompt template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadPromptRegistry()
		if err != nil {
			return err
		}
		p, err := registry.Get(args[0])
		if err != nil {
			return err
		}

		topic, _ := cmd.Flags().GetString("topic")
		if topic != "" {
			fmt.Println(p.Render(topic))
			return nil
		}
		fmt.Println(p.Config.Template)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)

	promptsShowCmd.Flags().String("topic", "", "Render the prompt for this topic instead of printing the template")
}

// loadPromptRegistry honours prompts.dir without requiring an API key.
func loadPromptRegistry() (*prompt.InMemoryRegistry, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	return prompt.NewRegistryWithOverrides(cfg.Prompts.Dir)
}
