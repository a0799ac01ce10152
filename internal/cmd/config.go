package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pocketomega/repolens/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Commands for inspecting the repolens configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the configuration after merging defaults, the settings file and the environment. Secrets are masked.",
		Example: `
# Show config as YAML
repolens config show

# Show config as JSON
repolens config show --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			s, envPath, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			masked := s.Masked()
			out := cmd.OutOrStdout()

			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(masked)
			}

			switch envFile, _ := cmd.Flags().GetString("env-file"); {
			case envPath != "":
				fmt.Fprintf(out, "# env file: %s\n", envPath)
			case envFile != "":
				fmt.Fprintf(out, "# env file: (not found: %s)\n", envFile)
			default:
				fmt.Fprintf(out, "# env file: %s\n", config.EnvFilePath())
			}
			if budget := s.Budget(); budget.MaxTokens != s.Context.MaxTokens {
				fmt.Fprintf(out, "# effective context max_tokens: %d (model context window)\n", budget.MaxTokens)
			}
			encoder := yaml.NewEncoder(out)
			encoder.SetIndent(2)
			if err := encoder.Encode(masked); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
	showCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Long:  "Report every missing or invalid setting at once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ configuration is valid")
			return nil
		},
	}

	configCmd.AddCommand(showCmd, validateCmd)
	return configCmd
}
