package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/janus/internal/app"
	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/hub"
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the janus daemon",
	Long: `Start the janus daemon: load the persisted watch configurations and begin
mirroring every configured watch directory into its sync directory.

Status notifications (sync summaries, per-file errors, configuration
changes) are printed to stdout; structured logs go to stderr.

Example:
  janus start
  janus start --config /etc/janus/config.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	log.Info().Str("version", version).Msg("starting janus")

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	// Console notifications for the operator.
	console := hub.NewChannelSubscriber("console", 64)
	application.Hub().Subscribe(console)
	go printNotifications(console)

	return application.Start(ctx)
}

// printNotifications renders user-facing status messages.
func printNotifications(sub *hub.ChannelSubscriber) {
	for event := range sub.Events() {
		base, ok := event.(*events.BaseEvent)
		if !ok {
			continue
		}
		switch base.Type() {
		case events.EventTypeNoChanges:
			fmt.Printf("[%s] no files changed\n", base.GetWatch())
		case events.EventTypeSyncSummary:
			if p, ok := base.Payload.(events.SyncSummaryPayload); ok {
				fmt.Printf("[%s] synchronised: %d copied, %d deleted\n", base.GetWatch(), p.Copied, p.Deleted)
			}
		case events.EventTypeFullSync:
			if p, ok := base.Payload.(events.FullSyncPayload); ok {
				fmt.Printf("[%s] full sync: %d copied, %d removed, %d errors\n", base.GetWatch(), p.Copied, p.Removed, p.Errors)
			}
		case events.EventTypeSyncError:
			if p, ok := base.Payload.(events.SyncErrorPayload); ok {
				fmt.Printf("[%s] sync error (%s) %s: %s\n", base.GetWatch(), p.Op, p.Path, p.Error)
			}
		case events.EventTypeWatchAdded:
			fmt.Printf("[%s] watch added\n", base.GetWatch())
		case events.EventTypeWatchRemoved:
			fmt.Printf("[%s] watch removed\n", base.GetWatch())
		case events.EventTypeStoreLoadFailed:
			if p, ok := base.Payload.(events.StoreLoadFailedPayload); ok {
				fmt.Printf("configuration store unreadable (%s), starting empty: %s\n", p.Path, p.Error)
			}
		case events.EventTypePatternInvalid:
			if p, ok := base.Payload.(events.PatternInvalidPayload); ok {
				fmt.Printf("[%s] invalid filter pattern %q: %s\n", base.GetWatch(), p.Pattern, p.Error)
			}
		}
	}
}
