package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Suyash-Gaurav/gaas-system/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example gaas.yaml with default settings",
	Long: `Write gaas.yaml in the current directory, populated with the
default configuration. Edit the file and run "gaas start".

Refuses to overwrite an existing file unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "gaas.yaml"

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		var cfg config.Config
		cfg.SetDefaults()

		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}

		header := []byte("# GaaS server configuration.\n# Values can be overridden with GAAS_-prefixed environment variables,\n# e.g. GAAS_SERVER_HTTP_ADDR=:9000\n")
		if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}

		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing gaas.yaml")
	rootCmd.AddCommand(initCmd)
}
