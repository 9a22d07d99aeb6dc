package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"packagedb/internal/app"
)

type queryOptions struct {
	Feeds []string
	Label string
}

func newQueryCommand() *cobra.Command {
	opts := queryOptions{}
	cmd := &cobra.Command{
		Use:   "query <Type>:<Name>",
		Short: "Show the best version of an artifact per quality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, args[0], opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Feeds, "feed", nil, "Restrict to these feeds")
	cmd.Flags().StringVar(&opts.Label, "label", "", "Print only the pick for this label (ci, exploratory, preview, latest, stable)")
	_ = viper.BindPFlag("feeds", cmd.Flags().Lookup("feed"))
	_ = viper.BindPFlag("label", cmd.Flags().Lookup("label"))
	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, artifact string, opts queryOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	snapshot := storeLocation().Snapshot
	label := resolveString(cmd, opts.Label, "label", "label")
	result, err := service.Query(ctx, app.QueryRequest{
		SnapshotPath: snapshot,
		Artifact:     artifact,
		Feeds:        resolveStrings(cmd, opts.Feeds, "feeds", "feed"),
		Label:        label,
	})
	if err != nil {
		return err
	}
	if label != "" {
		fmt.Println(result.Version)
		return nil
	}
	fmt.Printf("%s\n", result.Artifact)
	for _, pick := range result.Picks {
		fmt.Printf("- %s: %s\n", pick.Label, pick.Version)
	}
	return nil
}
