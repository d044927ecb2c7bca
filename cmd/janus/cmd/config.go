package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brianly1003/janus/internal/journal"
	"github.com/brianly1003/janus/internal/store"
)

// configCmd inspects the effective application settings.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect application settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the resolved store and journal paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		storePath := cfg.Store.Path
		if storePath == "" {
			storePath, err = store.DefaultPath()
			if err != nil {
				return err
			}
		}
		journalPath := cfg.Journal.Path
		if journalPath == "" {
			journalPath = journal.DefaultPath(storePath)
		}

		fmt.Printf("store:   %s\n", storePath)
		fmt.Printf("journal: %s (enabled: %v)\n", journalPath, cfg.Journal.Enabled)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
