package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/brianly1003/janus/internal/config"
	"github.com/brianly1003/janus/internal/domain"
	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/filter"
	"github.com/brianly1003/janus/internal/hub"
	"github.com/brianly1003/janus/internal/syncer"
)

var syncAll bool

// syncCmd performs a one-shot full reconciliation without starting the daemon.
var syncCmd = &cobra.Command{
	Use:   "sync [name]",
	Short: "Run a full synchronisation for a watch",
	Long: `Reconcile a watch's sync directory against its filtered watch directory:
missing entries are copied over, orphaned target entries are removed.

Runs directly against the persisted configuration; the daemon does not need
to be running.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "synchronise every configured watch")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if !syncAll && len(args) == 0 {
		return fmt.Errorf("a watch name is required unless --all is given")
	}

	_, data, err := openStore()
	if err != nil {
		return err
	}

	var targets []config.WatchConfig
	if syncAll {
		targets = data.Watches
	} else {
		for _, w := range data.Watches {
			if w.Name == args[0] {
				targets = append(targets, w)
				break
			}
		}
		if len(targets) == 0 {
			return domain.ErrWatchNotFound
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	h := hub.New()
	if err := h.Start(); err != nil {
		return err
	}
	defer h.Stop()
	h.Subscribe(hub.NewFuncSubscriber("sync-console", printSyncEvent))

	fs := afero.NewOsFs()
	var failed int
	for _, wc := range targets {
		filters := filter.NewSet(wc.Filters, func(pattern string, perr error) {
			log.Warn().Err(perr).Str("watch", wc.Name).Str("pattern", pattern).Msg("invalid filter pattern")
		})
		mirror := syncer.NewMirror(fs, wc, filters, h)
		if err := mirror.FullSynchronise(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Str("watch", wc.Name).Msg("full synchronisation failed")
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d watches failed to synchronise", failed, len(targets))
	}
	return nil
}

func printSyncEvent(event events.Event) {
	base, ok := event.(*events.BaseEvent)
	if !ok {
		return
	}
	switch base.Type() {
	case events.EventTypeFullSync:
		if p, ok := base.Payload.(events.FullSyncPayload); ok {
			fmt.Printf("[%s] %d copied, %d removed, %d errors\n", base.GetWatch(), p.Copied, p.Removed, p.Errors)
		}
	case events.EventTypeSyncError:
		if p, ok := base.Payload.(events.SyncErrorPayload); ok {
			fmt.Printf("[%s] error at %s: %s\n", base.GetWatch(), p.Path, p.Error)
		}
	}
}
