package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dimensional/GalaxyDL/internal/archiver"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
)

var downloadFlags struct {
	platforms     []string
	manifestsOnly bool
	generation    int
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "`download` archives a build, repository, or whole product catalog",
}

var downloadBuildCmd = &cobra.Command{
	Use:   "build <product-id> <build-id>",
	Short: "archive a single build by id, searching both generations (spec.md §4.5)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildArchiver()
		if err != nil {
			return err
		}

		var result *archiver.Result
		if downloadFlags.manifestsOnly {
			result, err = a.ArchiveManifestsOnly(context.Background(), args[0], args[1], downloadFlags.platforms)
		} else {
			result, err = a.ArchiveBuild(context.Background(), args[0], args[1], downloadFlags.platforms)
		}
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

var downloadRepositoryCmd = &cobra.Command{
	Use:   "repository <product-id> <repository-id>",
	Short: "archive a repository directly, without a build listing lookup",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildArchiver()
		if err != nil {
			return err
		}

		gen := galaxypath.Generation(downloadFlags.generation)
		if gen != galaxypath.Gen1 && gen != galaxypath.Gen2 {
			return fmt.Errorf("download repository: --generation must be 1 or 2")
		}

		result, err := a.ArchiveRepository(context.Background(), args[0], args[1], gen, downloadFlags.platforms)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

var downloadProductCmd = &cobra.Command{
	Use:   "product <product-id>",
	Short: "discover and archive every build currently listed for a product (supplemented feature, spec.md §9)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildArchiver()
		if err != nil {
			return err
		}

		result, err := a.ArchiveProduct(context.Background(), args[0], downloadFlags.platforms)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{downloadBuildCmd, downloadRepositoryCmd, downloadProductCmd} {
		c.Flags().StringSliceVar(&downloadFlags.platforms, "platform", []string{"windows"}, "platform(s) to archive (repeatable)")
	}
	downloadBuildCmd.Flags().BoolVar(&downloadFlags.manifestsOnly, "manifests-only", false, "fetch manifests only, skip chunk/blob content (spec.md §4.5)")
	downloadRepositoryCmd.Flags().IntVar(&downloadFlags.generation, "generation", 2, "manifest generation: 1 or 2")

	downloadCmd.AddCommand(downloadBuildCmd)
	downloadCmd.AddCommand(downloadRepositoryCmd)
	downloadCmd.AddCommand(downloadProductCmd)
}

func printResult(r *archiver.Result) {
	fmt.Printf("product=%s generation=%d depot_manifests=%d chunks_downloaded=%d chunks_skipped=%d chunks_failed=%d blobs_downloaded=%d blobs_skipped=%d errors=%d\n",
		r.Product, r.Generation, r.DepotManifestsFetched, r.ChunksDownloaded, r.ChunksSkipped, r.ChunksFailed, r.BlobsDownloaded, r.BlobsSkipped, len(r.Errors))
	for _, e := range r.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
