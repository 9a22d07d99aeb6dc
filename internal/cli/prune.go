package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"packagedb/internal/app"
)

type pruneOptions struct {
	KeepLast    int
	KeepDays    int
	ProtectTags []string
	DryRun      bool
}

func newPruneCommand() *cobra.Command {
	opts := pruneOptions{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune recorded generations based on retention policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.KeepLast, "keep-last", 0, "Keep the last N generations")
	cmd.Flags().IntVar(&opts.KeepDays, "keep-days", 0, "Keep generations newer than N days")
	cmd.Flags().StringSliceVar(&opts.ProtectTags, "protect-tag", nil, "Protect tagged generations from pruning (* protects every tag)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", true, "Only report prune actions without deleting")

	_ = viper.BindPFlag("keep_last", cmd.Flags().Lookup("keep-last"))
	_ = viper.BindPFlag("keep_days", cmd.Flags().Lookup("keep-days"))
	_ = viper.BindPFlag("protect_tags", cmd.Flags().Lookup("protect-tag"))
	_ = viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runPrune(ctx context.Context, cmd *cobra.Command, opts pruneOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.PruneGenerations(ctx, app.PruneRequest{
		HistoryDir:  storeLocation().HistoryDir,
		KeepLast:    resolveInt(cmd, opts.KeepLast, "keep_last", "keep-last"),
		KeepDays:    resolveInt(cmd, opts.KeepDays, "keep_days", "keep-days"),
		ProtectTags: resolveStrings(cmd, opts.ProtectTags, "protect_tags", "protect-tag"),
		DryRun:      resolveBool(cmd, opts.DryRun, "dry_run", "dry-run"),
	})
	if err != nil {
		return err
	}
	if result.DryRun {
		fmt.Printf("dry-run: keep=%d delete=%d\n", result.KeepCount, result.DeleteCount)
		return nil
	}
	fmt.Printf("pruned generations: %d\n", result.DeleteCount)
	printList("deleted", result.Deleted)
	return nil
}
