package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"packagedb/internal/app"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the package db and check the feed mirror",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd.Context())
		},
	}
}

func runInspect(ctx context.Context) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	store := storeLocation()
	result, err := service.Inspect(ctx, app.InspectRequest{
		SnapshotPath: store.Snapshot,
		MirrorDir:    store.MirrorDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("packages: %d\n", result.Instances)
	fmt.Println("types:")
	for _, summary := range result.Types {
		installable := ""
		if !summary.Installable {
			installable = ", not installable"
		}
		fmt.Printf("- %s: %d artifacts, %d packages%s\n", summary.Name, summary.Artifacts, summary.Instances, installable)
	}
	fmt.Println("feeds:")
	for _, feed := range result.Feeds {
		fmt.Printf("- %s: %d packages\n", feed.Name, feed.Packages)
	}
	if store.MirrorDir == "" {
		return nil
	}
	if len(result.MissingListings)+len(result.StaleListings)+len(result.OrphanListings) == 0 {
		fmt.Println("mirror: up to date")
		return nil
	}
	printList("mirror missing", result.MissingListings)
	printList("mirror stale", result.StaleListings)
	printList("mirror orphan", result.OrphanListings)
	return nil
}
