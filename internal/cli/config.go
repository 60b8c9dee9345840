package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veristream/internal/model"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or bootstrap the configuration",
	Long: `Inspect the effective configuration or write a starter config file.

Settings resolve in this order, with earlier sources winning:
command-line flags, VERISTREAM_* environment variables, the config
file at ~/.veristream/config.yaml, built-in defaults.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Fprintf(os.Stderr, "# loaded from %s\n", file)
		} else {
			fmt.Fprintln(os.Stderr, "# no config file found, showing defaults")
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

// configFileHeader tops the generated file. API keys stay out of it on
// purpose; the providers read them from the environment.
const configFileHeader = `# veristream configuration.
# Flags and VERISTREAM_* environment variables override these values.
#
# Keep API keys in the environment rather than here:
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OLLAMA_BASE_URL=http://localhost:11434

`

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file with the built-in defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate home directory: %w", err)
		}
		dir := filepath.Join(home, ".veristream")
		path := filepath.Join(dir, "config.yaml")

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; edit it directly or remove it to start over", path)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		body, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("render defaults: %w", err)
		}
		if err := os.WriteFile(path, append([]byte(configFileHeader), body...), 0o644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		fmt.Printf("wrote %s\n", path)
		fmt.Println("review it with: veristream config show")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
