package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brianly1003/janus/internal/journal"
	"github.com/brianly1003/janus/internal/store"
)

var historyLimit int

// historyCmd lists recent sync operations from the journal.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Journal.Enabled {
			return fmt.Errorf("journal is disabled in the configuration")
		}

		path := cfg.Journal.Path
		if path == "" {
			storePath := cfg.Store.Path
			if storePath == "" {
				storePath, err = store.DefaultPath()
				if err != nil {
					return err
				}
			}
			path = journal.DefaultPath(storePath)
		}

		j, err := journal.Open(path)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Recent(historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no sync history")
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  [%s] %-6s %-5s %s",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Watch, e.Op, e.Status, e.Path)
			if e.Error != "" {
				line += "  (" + e.Error + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum number of entries to show")
}
