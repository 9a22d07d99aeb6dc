package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"packagedb/internal/app"
)

type importOptions struct {
	Manifest     string
	SkipExisting bool
}

func newImportCommand() *cobra.Command {
	opts := importOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a feed manifest into the package db",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "Feed manifest path")
	cmd.Flags().BoolVar(&opts.SkipExisting, "skip-existing", false, "Skip packages already present instead of failing")
	_ = viper.BindPFlag("manifest", cmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("skip_existing", cmd.Flags().Lookup("skip-existing"))
	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, opts importOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	store := storeLocation()
	result, err := service.Import(ctx, app.ImportRequest{
		ManifestPath: resolveString(cmd, opts.Manifest, "manifest", "manifest"),
		SnapshotPath: store.Snapshot,
		MirrorDir:    store.MirrorDir,
		HistoryDir:   store.HistoryDir,
		SkipExisting: resolveBool(cmd, opts.SkipExisting, "skip_existing", "skip-existing"),
	})
	if err != nil {
		return err
	}
	if !result.Changed {
		fmt.Printf("unchanged: %d packages\n", result.Instances)
		return nil
	}
	fmt.Printf("imported: %d added, %d updated, %d destroyed (%d packages)\n",
		len(result.Added), len(result.Updated), len(result.Destroyed), result.Instances)
	printList("new feeds", result.NewFeeds)
	printList("changed feeds", result.ChangedFeeds)
	printList("dropped feeds", result.DroppedFeeds)
	if result.Generation != "" {
		fmt.Printf("generation: %s\n", result.Generation)
	}
	return nil
}

func printList(title string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Printf("%s: %s\n", title, strings.Join(values, ", "))
}
