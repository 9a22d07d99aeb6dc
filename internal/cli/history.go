package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"packagedb/internal/app"
)

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded generations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context())
		},
	}
}

func runHistory(ctx context.Context) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.ListGenerations(ctx, app.HistoryRequest{HistoryDir: storeLocation().HistoryDir})
	if err != nil {
		return err
	}
	for _, generation := range result.Generations {
		line := fmt.Sprintf("%s  %s", generation.ID, generation.CreatedAt.Format(time.RFC3339))
		if len(generation.Tags) > 0 {
			line += "  [" + strings.Join(generation.Tags, ", ") + "]"
		}
		fmt.Println(line)
	}
	return nil
}

func newTagCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <generation|tag> <tag>",
		Short: "Point a tag at a recorded generation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(cmd.Context(), args[0], args[1])
		},
	}
}

func runTag(ctx context.Context, ref string, tag string) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.TagGeneration(ctx, app.TagRequest{
		HistoryDir: storeLocation().HistoryDir,
		Ref:        ref,
		Tag:        tag,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", result.Tag, result.ID)
	return nil
}

func newDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <from> [to]",
		Short: "Show the changes between two generations or since one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := ""
			if len(args) == 2 {
				to = args[1]
			}
			return runDiff(cmd.Context(), args[0], to)
		},
	}
}

func runDiff(ctx context.Context, from string, to string) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	store := storeLocation()
	result, err := service.DiffGenerations(ctx, app.DiffRequest{
		SnapshotPath: store.Snapshot,
		HistoryDir:   store.HistoryDir,
		From:         from,
		To:           to,
	})
	if err != nil {
		return err
	}
	if !result.Changed {
		fmt.Printf("%s..%s: unchanged\n", result.From, result.To)
		return nil
	}
	fmt.Printf("%s..%s\n", result.From, result.To)
	printList("added", result.Added)
	printList("updated", result.Updated)
	printList("destroyed", result.Destroyed)
	printList("new feeds", result.NewFeeds)
	printList("changed feeds", result.ChangedFeeds)
	printList("dropped feeds", result.DroppedFeeds)
	return nil
}
