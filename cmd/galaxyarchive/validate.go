package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dimensional/GalaxyDL/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "`validate` checks archived content against its manifests without mutating the store (spec.md §4.6)",
}

var validateGen2Cmd = &cobra.Command{
	Use:   "gen2 <depot-manifest-hash>...",
	Short: "validate the chunks referenced by one or more gen-2 depot manifests",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, mc, _, _, err := wireStore()
		if err != nil {
			return err
		}

		report, err := validate.New(s, mc).ValidateGen2(context.Background(), args)
		if err != nil {
			return err
		}
		printValidateReport(report)
		return nil
	},
}

var validateGen1Flags struct {
	productID    string
	platform     string
	repositoryID string
}

var validateGen1Cmd = &cobra.Command{
	Use:   "gen1 <depot-manifest-filename>...",
	Short: "validate a gen-1 repository's shared blob against one or more depot manifests",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, mc, _, _, err := wireStore()
		if err != nil {
			return err
		}

		report, err := validate.New(s, mc).ValidateGen1(context.Background(),
			validateGen1Flags.productID, validateGen1Flags.platform, validateGen1Flags.repositoryID, args)
		if err != nil {
			return err
		}
		printValidateReport(report)
		return nil
	},
}

func init() {
	validateGen1Cmd.Flags().StringVar(&validateGen1Flags.productID, "product", "", "product id (required)")
	validateGen1Cmd.Flags().StringVar(&validateGen1Flags.platform, "platform", "windows", "platform")
	validateGen1Cmd.Flags().StringVar(&validateGen1Flags.repositoryID, "repository", "", "repository id (required)")
	validateGen1Cmd.MarkFlagRequired("product")
	validateGen1Cmd.MarkFlagRequired("repository")

	validateCmd.AddCommand(validateGen2Cmd)
	validateCmd.AddCommand(validateGen1Cmd)
}

func printValidateReport(r *validate.Report) {
	fmt.Printf("generation=%d chunks_ok=%d chunks_missing=%d chunks_corrupted=%d files_ok=%d files_mismatched=%d overlaps=%d blob_exists=%t blob_undersized=%t ok=%t\n",
		r.Generation, r.ChunksOK, r.ChunksMissing, r.ChunksCorrupted, r.FilesOK, r.FilesMismatched, len(r.Overlaps), r.BlobExists, r.BlobUndersized, r.OK())

	for _, h := range r.MissingChunks {
		fmt.Printf("  missing chunk: %s\n", h)
	}
	for _, h := range r.CorruptedChunks {
		fmt.Printf("  corrupted chunk: %s\n", h)
	}
	for _, p := range r.MismatchedFiles {
		fmt.Printf("  mismatched file: %s\n", p)
	}
	for _, o := range r.Overlaps {
		fmt.Printf("  overlap: %s (ends %d) overlaps %s (starts %d)\n", o.FirstPath, o.FirstEnd, o.SecondPath, o.SecondStart)
	}
	for _, e := range r.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
