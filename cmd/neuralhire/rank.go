package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank QUERY",
	Short: "Rank stored jobs for a query and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringSliceP("tag", "t", nil, "benefit tag to require (repeatable, any tag matches)")
	rankCmd.Flags().Bool("llm", false, "reorder the final list with the LLM validator")
	rankCmd.Flags().Bool("steps", false, "print how many candidates each stage kept")
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	tags, _ := cmd.Flags().GetStringSlice("tag")
	useLLM, _ := cmd.Flags().GetBool("llm")
	showSteps, _ := cmd.Flags().GetBool("steps")

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	match, err := a.matchService(ctx)
	if err != nil {
		return err
	}

	res, err := match.Rank(ctx, ranking.Request{
		Query:  strings.Join(args, " "),
		Tags:   tags,
		UseLLM: useLLM,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showSteps {
		printSteps(out, res.Steps)
	}
	printJobs(out, res)
	return nil
}

func printSteps(out io.Writer, steps []ranking.Step) {
	for _, st := range steps {
		fmt.Fprintf(out, "%-9s %5d -> %-5d (-%d) %s", st.Stage, st.Initial, st.Left, st.Dropped(), st.Duration.Round(time.Microsecond))
		if st.Note != "" {
			fmt.Fprintf(out, " [%s]", st.Note)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)
}

func printJobs(out io.Writer, res *ranking.Result) {
	if res.NoMatches {
		fmt.Fprintf(out, "no matches (%s)\n", res.Reason)
		return
	}
	if res.LLMFallback {
		fmt.Fprintln(out, "LLM reorder unavailable, showing ranker order")
	}
	for i, j := range res.Jobs {
		line := j.Job.Title
		if company := jobtext.CleanField(j.Job.Company); company != "" {
			line += ", " + company
		}
		if city := jobtext.CleanField(j.Job.City); city != "" {
			line += " (" + city + ")"
		}
		fmt.Fprintf(out, "%2d. %.4f  %s\n", i+1, j.Score, line)
		if j.Job.Link != "" {
			fmt.Fprintf(out, "    %s\n", j.Job.Link)
		}
	}
}
