package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the job corpus with a scraped CSV file (- reads stdin) and embed it",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute the embedding of every stored job",
	Args:  cobra.NoArgs,
	RunE:  runReembed,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector index from stored embeddings",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report stored vectors whose length differs from the configured dimension",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

// errCheckFailed makes check exit non-zero without repeating the report.
var errCheckFailed = errors.New("stored vectors do not match the configured dimension")

func init() {
	rootCmd.AddCommand(importCmd, reembedCmd, indexCmd, checkCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.jobService().Import(ctx, in)
	if err != nil {
		return err
	}
	log.Info("import finished",
		zap.Int("rows", stats.Rows),
		zap.Int("embedded", stats.Embedded),
		zap.Int("embed_failures", stats.EmbedFailures),
		zap.Int("indexed", stats.Indexed),
		zap.Duration("duration", stats.Duration),
	)
	return nil
}

func runReembed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.jobService().Reembed(ctx)
	if err != nil {
		return err
	}
	log.Info("reembed finished",
		zap.Int("total", stats.Total),
		zap.Int("updated", stats.Updated),
		zap.Int("failed", stats.Failed),
		zap.Int("indexed", stats.Indexed),
	)
	return nil
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.jobService().Index(ctx)
	if err != nil {
		return err
	}
	log.Info("index rebuilt", zap.Int("points", n))
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.jobService().Check(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "jobs: %d, with vectors: %d, expected dimension: %d\n",
		report.Total, report.WithVectors, report.Expected)

	dims := make([]int, 0, len(report.Dimensions))
	for d := range report.Dimensions {
		dims = append(dims, d)
	}
	sort.Ints(dims)
	for _, d := range dims {
		mark := ""
		if d != report.Expected {
			mark = "  MISMATCH"
		}
		fmt.Fprintf(out, "  dim %d: %d%s\n", d, report.Dimensions[d], mark)
	}

	if !report.OK() {
		return fmt.Errorf("%w: %d vectors", errCheckFailed, report.Mismatched)
	}
	return nil
}
