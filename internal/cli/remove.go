package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"packagedb/internal/app"
)

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <Type>:<Name>/<Version>...",
		Short: "Remove packages from the package db",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), args)
		},
	}
}

func runRemove(ctx context.Context, packages []string) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	store := storeLocation()
	result, err := service.Remove(ctx, app.RemoveRequest{
		SnapshotPath: store.Snapshot,
		MirrorDir:    store.MirrorDir,
		HistoryDir:   store.HistoryDir,
		Packages:     packages,
	})
	if err != nil {
		return err
	}
	fmt.Printf("removed: %d packages (%d left)\n", len(result.Removed), result.Instances)
	printList("dropped feeds", result.DroppedFeeds)
	if result.Generation != "" {
		fmt.Printf("generation: %s\n", result.Generation)
	}
	return nil
}
