package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/brianly1003/janus/internal/config"
	"github.com/brianly1003/janus/internal/domain"
	"github.com/brianly1003/janus/internal/filter"
	"github.com/brianly1003/janus/internal/store"
)

// watchCmd manages the persisted watch configurations.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watch configurations",
	Long: `Inspect and edit the persisted watch configuration list.

These commands operate on the store file directly. A running daemon picks
the changes up on its next restart.`,
}

var (
	watchAddRecursive  bool
	watchAddAutoAdd    bool
	watchAddAutoDelete bool
	watchAddObserve    bool
	watchAddDelay      time.Duration
	watchAddExclude    []string
	watchAddExcludeF   []string
	watchAddInclude    []string

	watchExportFile  string
	watchImportMerge bool
)

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured watches",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, data, err := openStore()
		if err != nil {
			return err
		}
		if len(data.Watches) == 0 {
			fmt.Println("no watches configured")
			return nil
		}
		for _, w := range data.Watches {
			mode := "manual"
			if w.AutoAdd && w.AutoDelete {
				mode = "auto"
			} else if w.AutoAdd || w.AutoDelete {
				mode = "mixed"
			}
			fmt.Printf("%s\n", w.Name)
			fmt.Printf("  watch dir:  %s\n", w.WatchDir)
			fmt.Printf("  sync dir:   %s\n", w.SyncDir)
			fmt.Printf("  mode:       %s  recursive=%v  observe=%v  delay=%s\n",
				mode, w.Recursive, w.Observe, w.Delay)
			for _, f := range w.Filters {
				fmt.Printf("  filter:     %s %v\n", f.Kind, f.Patterns)
			}
		}
		return nil
	},
}

var watchAddCmd = &cobra.Command{
	Use:   "add <name> <watch-dir> <sync-dir>",
	Short: "Add a watch configuration",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		wc := config.WatchConfig{
			Name:       args[0],
			WatchDir:   args[1],
			SyncDir:    args[2],
			Recursive:  watchAddRecursive,
			AutoAdd:    watchAddAutoAdd,
			AutoDelete: watchAddAutoDelete,
			Observe:    watchAddObserve,
			Delay:      watchAddDelay,
		}
		if !cmd.Flags().Changed("delay") {
			wc.Delay = time.Duration(cfg.Watcher.DefaultDebounceMS) * time.Millisecond
		}

		// Configured defaults apply when no explicit patterns are given.
		if len(watchAddExclude) == 0 && len(watchAddExcludeF) == 0 && len(watchAddInclude) == 0 {
			watchAddExclude = cfg.Watcher.DefaultExcludePatterns
		}
		if len(watchAddExclude) > 0 {
			wc.Filters = append(wc.Filters, filter.Filter{Kind: filter.KindExclude, Patterns: watchAddExclude})
		}
		if len(watchAddExcludeF) > 0 {
			wc.Filters = append(wc.Filters, filter.Filter{Kind: filter.KindExcludeFile, Patterns: watchAddExcludeF})
		}
		if len(watchAddInclude) > 0 {
			wc.Filters = append(wc.Filters, filter.Filter{Kind: filter.KindInclude, Patterns: watchAddInclude})
		}
		if err := wc.Validate(); err != nil {
			return err
		}

		st, data, err := openStore()
		if err != nil {
			return err
		}
		for _, existing := range data.Watches {
			if existing.Name == wc.Name {
				return domain.ErrWatchExists
			}
		}
		data.Watches = append(data.Watches, wc)
		if err := st.Save(data); err != nil {
			return err
		}
		fmt.Printf("watch %q added\n", wc.Name)
		return nil
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a watch configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, data, err := openStore()
		if err != nil {
			return err
		}
		name := args[0]
		for i, w := range data.Watches {
			if w.Name == name {
				data.Watches = append(data.Watches[:i], data.Watches[i+1:]...)
				if err := st.Save(data); err != nil {
					return err
				}
				fmt.Printf("watch %q removed\n", name)
				return nil
			}
		}
		return domain.ErrWatchNotFound
	},
}

var watchExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export watch configurations as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, data, err := openStore()
		if err != nil {
			return err
		}
		out := os.Stdout
		if watchExportFile != "" {
			f, err := os.Create(watchExportFile)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return config.ExportWatches(out, data.Watches)
	},
}

var watchImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import watch configurations from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()

		watches, err := config.ImportWatches(f)
		if err != nil {
			return err
		}

		st, data, err := openStore()
		if err != nil {
			return err
		}
		if !watchImportMerge {
			data.Watches = nil
		}
		for _, wc := range watches {
			replaced := false
			for i, existing := range data.Watches {
				if existing.Name == wc.Name {
					data.Watches[i] = wc
					replaced = true
					break
				}
			}
			if !replaced {
				data.Watches = append(data.Watches, wc)
			}
		}
		if err := st.Save(data); err != nil {
			return err
		}
		fmt.Printf("imported %d watches\n", len(watches))
		return nil
	},
}

func init() {
	watchAddCmd.Flags().BoolVarP(&watchAddRecursive, "recursive", "r", true, "watch the whole subtree")
	watchAddCmd.Flags().BoolVar(&watchAddAutoAdd, "auto-add", true, "mirror adds and modifications immediately")
	watchAddCmd.Flags().BoolVar(&watchAddAutoDelete, "auto-delete", true, "mirror deletions immediately")
	watchAddCmd.Flags().BoolVar(&watchAddObserve, "observe", false, "configuration only, no OS-level watch")
	watchAddCmd.Flags().DurationVar(&watchAddDelay, "delay", 0, "debounce interval for raw filesystem events")
	watchAddCmd.Flags().StringArrayVar(&watchAddExclude, "exclude", nil, "full-path exclude pattern (repeatable)")
	watchAddCmd.Flags().StringArrayVar(&watchAddExcludeF, "exclude-file", nil, "file-name exclude pattern (repeatable)")
	watchAddCmd.Flags().StringArrayVar(&watchAddInclude, "include", nil, "include pattern; non-matching files are excluded (repeatable)")

	watchExportCmd.Flags().StringVarP(&watchExportFile, "output", "o", "", "write to file instead of stdout")
	watchImportCmd.Flags().BoolVar(&watchImportMerge, "merge", false, "merge into existing watches instead of replacing them")

	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchExportCmd)
	watchCmd.AddCommand(watchImportCmd)
}

// openStore resolves the store path from the settings and loads it.
func openStore() (*store.Store, store.Data, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, store.Data{}, err
	}
	path := cfg.Store.Path
	if path == "" {
		path, err = store.DefaultPath()
		if err != nil {
			return nil, store.Data{}, fmt.Errorf("failed to resolve store path: %w", err)
		}
	}
	st := store.New(afero.NewOsFs(), path)
	if err := st.Initialise(); err != nil {
		return nil, store.Data{}, err
	}
	data, err := st.Load()
	if err != nil {
		return nil, store.Data{}, err
	}
	return st, data, nil
}
