package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"packagedb/internal/app"
)

type sbomOptions struct {
	Output     string
	Generation string
	Feeds      []string
}

func newSBOMCommand() *cobra.Command {
	opts := sbomOptions{}
	cmd := &cobra.Command{
		Use:   "sbom",
		Short: "Export the package db as an SPDX document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSBOM(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Output, "out", "", "Output path of the SPDX JSON document")
	cmd.Flags().StringVar(&opts.Generation, "generation", "", "Export a recorded generation or tag instead of the current snapshot")
	cmd.Flags().StringSliceVar(&opts.Feeds, "feed", nil, "Restrict to these qualified feeds (<Type>:<Feed>)")
	_ = viper.BindPFlag("sbom_out", cmd.Flags().Lookup("out"))
	return cmd
}

func runSBOM(ctx context.Context, cmd *cobra.Command, opts sbomOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	store := storeLocation()
	result, err := service.ExportSBOM(ctx, app.SBOMRequest{
		SnapshotPath: store.Snapshot,
		HistoryDir:   store.HistoryDir,
		Generation:   opts.Generation,
		Feeds:        opts.Feeds,
		OutputPath:   resolveString(cmd, opts.Output, "sbom_out", "out"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("sbom: %d packages from %s written to %s\n", result.Packages, result.Name, result.Path)
	return nil
}
