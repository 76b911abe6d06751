package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dimensional/GalaxyDL/internal/archiver"
	"github.com/Dimensional/GalaxyDL/internal/buildindex"
)

var listFlags struct {
	builds    bool
	chunks    bool
	blobs     bool
	manifests bool
	detailed  bool
}

// listCmd folds archiver.py's list_builds/list_manifests into one command
// with per-kind flags, per SPEC_FULL.md §9's supplemented `list` surface.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "`list` reports what is currently archived (supplemented feature, spec.md §9)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, _, _, err := wireStore()
		if err != nil {
			return err
		}

		idx, err := buildindex.Load(s)
		if err != nil {
			return err
		}

		lister := archiver.NewLister(s, idx)

		none := !listFlags.builds && !listFlags.chunks && !listFlags.blobs && !listFlags.manifests
		if listFlags.builds || none {
			if listFlags.detailed {
				fmt.Printf("build index: %s\n", archiver.BuildIndexPath())
			}
			printBuildList(lister)
		}
		if listFlags.chunks || none {
			count, err := lister.CountChunks()
			if err != nil {
				return err
			}
			fmt.Printf("chunks: %d\n", count)
		}
		if listFlags.blobs || none {
			count, err := lister.CountBlobs()
			if err != nil {
				return err
			}
			fmt.Printf("blobs: %d\n", count)
		}
		if listFlags.manifests || none {
			count, err := lister.CountManifests()
			if err != nil {
				return err
			}
			fmt.Printf("manifests: %d\n", count)
		}

		return nil
	},
}

func printBuildList(lister *archiver.Lister) {
	for _, e := range lister.ListBuilds() {
		if !listFlags.detailed {
			fmt.Printf("%s\t%s\t%s\tgen%d\t%s\n", e.ProductID, e.BuildID, e.Platform, e.Generation, e.VersionLabel)
			continue
		}
		fmt.Printf("%s\t%s\t%s\tgen%d\t%s\tbuild_hash=%s\trepository=%s\ttags=%v\n",
			e.ProductID, e.BuildID, e.Platform, e.Generation, e.VersionLabel, e.BuildHash, e.RepositoryID, e.Tags)
	}
}

var syncMetadataCmd = &cobra.Command{
	Use:   "sync-metadata <product-id>",
	Short: "re-fetch the build listing and backfill version/tag metadata onto existing Build Records (spec.md §9)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildArchiver()
		if err != nil {
			return err
		}
		return a.SyncBuildMetadata(context.Background(), args[0], downloadFlags.platforms)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listFlags.builds, "builds", false, "list archived builds")
	listCmd.Flags().BoolVar(&listFlags.chunks, "chunks", false, "count archived chunks")
	listCmd.Flags().BoolVar(&listFlags.blobs, "blobs", false, "count archived blobs")
	listCmd.Flags().BoolVar(&listFlags.manifests, "manifests", false, "count archived manifests")
	listCmd.Flags().BoolVar(&listFlags.detailed, "detailed", false, "include build_hash/repository/tags in build listing")

	syncMetadataCmd.Flags().StringSliceVar(&downloadFlags.platforms, "platform", []string{"windows"}, "platform(s) to sync (repeatable)")
}
