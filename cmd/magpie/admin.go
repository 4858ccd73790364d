package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"

	"github.com/signalnest/magpie/internal/storage"
	"github.com/signalnest/magpie/internal/util"
	"github.com/signalnest/magpie/pkg/export"
	"github.com/signalnest/magpie/pkg/resolver"
	"github.com/signalnest/magpie/pkg/sources"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run entity resolution: merge duplicates, drop junk, retype unknowns",
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		if !cmd.Flags().Changed("threshold") {
			threshold = util.GetEnvFloat("SIMILARITY_THRESHOLD", threshold)
		}

		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		counts, err := resolver.New(st, threshold).RunAll(ctx)
		if err != nil {
			return err
		}
		for _, k := range sortedKeys(counts) {
			fmt.Printf("%s: %d\n", k, counts[k])
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Print the source quality report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		report, err := sources.NewValidator(st).Report(ctx)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Validation report"))
		fmt.Printf("  entities: %d   enriched: %d (%.0f%%)   multi-source: %d\n",
			report.TotalEntities,
			report.EnrichedEntities,
			report.EnrichmentCoverage*100,
			report.MultiSourceEntities)
		fmt.Printf("  data quality score: %.2f\n\n", report.DataQualityScore)

		t := newTable("Tier", "Relationships")
		t.Row("1 (primary)", strconv.Itoa(report.TierDistribution.Tier1Primary))
		t.Row("2 (reputable)", strconv.Itoa(report.TierDistribution.Tier2Reputable))
		t.Row("3 (secondary)", strconv.Itoa(report.TierDistribution.Tier3Secondary))
		fmt.Println(t.Render())

		if len(report.SourceDistribution) > 0 {
			t = newTable("Source", "Relationships")
			for _, k := range sortedKeys(report.SourceDistribution) {
				t.Row(k, strconv.Itoa(report.SourceDistribution[k]))
			}
			fmt.Println(t.Render())
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy the whole graph into another store",
	Long: `Copy every entity, relationship, alias, enrichment record, and tag
from the source store (--db) into the target store (--to). Rows already
present in the target are skipped, so the copy is safe to re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		if to == "" {
			return fmt.Errorf("--to is required")
		}

		ctx := cmd.Context()
		src, closeSrc, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeSrc()

		dst, closeDst, err := openDSN(ctx, to)
		if err != nil {
			return err
		}
		defer closeDst()

		report, err := export.Copy(ctx, src, dst)
		if err != nil {
			return err
		}

		fmt.Printf("entities: %d copied, %d already present\n", report.EntitiesCopied, report.EntitiesSkipped)
		fmt.Printf("relationships: %d copied, %d duplicates, %d dropped\n",
			report.RelationshipsCopied, report.RelationshipsSkipped, report.RelationshipsDropped)
		fmt.Printf("aliases: %d, enrichment: %d, tags: %d\n",
			report.AliasesCopied, report.EnrichmentCopied, report.TagsCopied)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write an NDJSON snapshot of the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		toS3, _ := cmd.Flags().GetBool("s3")

		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if toS3 {
			if !storage.Configured() {
				return fmt.Errorf("S3_BUCKET is not set")
			}
			client, err := storage.NewClient(ctx)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.WriteSnapshot(ctx, &buf, st); err != nil {
				return err
			}
			id, err := gonanoid.New(8)
			if err != nil {
				return err
			}
			key := fmt.Sprintf("snapshots/%s-%s.jsonl", time.Now().UTC().Format("20060102T150405Z"), id)
			location, err := storage.UploadSnapshot(ctx, client, key, &buf)
			if err != nil {
				return err
			}
			fmt.Println(location)
			return nil
		}

		w := os.Stdout
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}
		return export.WriteSnapshot(ctx, w, st)
	},
}

func init() {
	resolveCmd.Flags().Float64("threshold", 0.85, "name similarity merge threshold")
	exportCmd.Flags().String("to", "", "target store DSN")
	snapshotCmd.Flags().String("out", "", "write to a file instead of stdout")
	snapshotCmd.Flags().Bool("s3", false, "upload to the configured S3 bucket")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotCmd)
}
