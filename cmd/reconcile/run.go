package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rxstock/internal/app"
	"github.com/JonMunkholm/rxstock/internal/core"
)

// topCandidates is how many candidates are printed per similar record.
const topCandidates = 3

type runOptions struct {
	file       string
	mode       string
	commit     bool
	ackSkipped bool
	chunkSize  int
	operator   string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate and match a stock sheet, optionally committing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.chunkSize > 0 {
				cfg.Import.ChunkSize = opts.chunkSize
			}
			if opts.mode == "" {
				opts.mode = cfg.Import.DefaultMode
			}

			a, err := app.Build(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(opts.file)
			if err != nil {
				return err
			}
			defer f.Close()

			return reconcile(cmd.Context(), a.Service, f, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "CSV stock sheet (required)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Import mode: existing or new_and_existing (default from IMPORT_DEFAULT_MODE)")
	cmd.Flags().BoolVar(&opts.commit, "commit", false, "Commit eligible records to inventory (default is a dry run)")
	cmd.Flags().BoolVar(&opts.ackSkipped, "ack-skipped", false, "Commit even though similar or invalid records will be skipped")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Records per inventory call (default from IMPORT_CHUNK_SIZE)")
	cmd.Flags().StringVar(&opts.operator, "operator", os.Getenv("USER"), "Operator name recorded in the audit log")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// reconcile loads the sheet into a session, prints what was found and, when
// asked, commits it while printing progress.
func reconcile(ctx context.Context, svc *core.Service, sheet io.Reader, opts runOptions, out io.Writer) error {
	ctx = core.ContextWithOperator(ctx, opts.operator)
	ctx = core.ContextWithUserAgent(ctx, "reconcile-cli")

	res, err := svc.CreateSession(ctx, opts.mode, filepath.Base(opts.file), sheet)
	if err != nil {
		return errors.New(core.FormatUserError(err))
	}
	id := res.Summary.SessionID

	printSummary(out, res)
	view, err := svc.GetSession(id, "")
	if err != nil {
		return err
	}
	printReview(out, view.Records)

	if !opts.commit {
		fmt.Fprintln(out, "\ndry run: nothing committed (use --commit)")
		return svc.DiscardSession(ctx, id)
	}

	plan, err := svc.StartCommit(ctx, id, opts.ackSkipped)
	if errors.Is(err, core.ErrSkippedNotAcknowledged) {
		return fmt.Errorf("%d records would be skipped; review them or pass --ack-skipped", plan.Skipped)
	}
	if err != nil {
		return errors.New(core.FormatUserError(err))
	}
	fmt.Fprintf(out, "\ncommitting %d records in %d chunks of %d\n", plan.Eligible, plan.Chunks, plan.ChunkSize)

	if err := watchProgress(ctx, svc, id, out); err != nil {
		fmt.Fprintln(out, "interrupted: cancelling after the current chunk")
		_ = svc.CancelCommit(id)
	}
	outcome, err := svc.WaitCommit(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	return printOutcome(out, outcome)
}

// watchProgress prints progress lines until the run ends or ctx is done.
func watchProgress(ctx context.Context, svc *core.Service, id uuid.UUID, out io.Writer) error {
	progress, stop, err := svc.SubscribeProgress(id)
	if err != nil {
		return nil
	}
	defer stop()
	for {
		select {
		case p, ok := <-progress:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "  %d/%d (%d%%)\n", p.Current, p.Total, p.Percent())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printSummary(out io.Writer, res core.ImportResult) {
	s := res.Summary
	fmt.Fprintf(out, "session %s (%s, %s): %d records\n", s.SessionID, s.Mode, s.FileName, s.Total)
	fmt.Fprintf(out, "  matched %d  similar %d  new %d  invalid %d\n",
		res.Stats.Matched, res.Stats.Similar, res.Stats.New, res.Stats.Invalid)
	if res.Stats.LookupFailures > 0 {
		fmt.Fprintf(out, "  catalog lookups failed for %d records\n", res.Stats.LookupFailures)
	}
}

// printReview lists the records an operator has to look at: similar rows
// with their best candidates and invalid rows with their errors.
func printReview(out io.Writer, records []core.ImportRecord) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := false
	for _, r := range records {
		if r.Status != core.StatusSimilar && r.Status != core.StatusInvalid {
			continue
		}
		if !header {
			fmt.Fprintln(tw, "\nLINE\tSTATUS\tBARCODE\tNAME\tDETAIL")
			header = true
		}
		switch r.Status {
		case core.StatusSimilar:
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", r.Line, r.Status, r.Barcode, r.Name)
			for i, c := range r.CandidateMatches {
				if i == topCandidates {
					break
				}
				fmt.Fprintf(tw, "\t\t%s\t%s\t%.0f%% %s\n", c.Product.Barcode, c.Product.Name, c.Similarity*100, c.Product.ID)
			}
		case core.StatusInvalid:
			for i, e := range r.ValidationErrors {
				if i == 0 {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Line, r.Status, r.Barcode, r.Name, e)
				} else {
					fmt.Fprintf(tw, "\t\t\t\t%s\n", e)
				}
			}
		}
	}
	tw.Flush()
}

func printOutcome(out io.Writer, o core.CommitOutcome) error {
	fmt.Fprintf(out, "committed %d, failed %d, not attempted %d\n",
		len(o.Result.Committed), len(o.Result.Failed), len(o.Result.NotAttempted))
	if o.Error == "" {
		return nil
	}
	if o.Retryable {
		fmt.Fprintln(out, "the failure was a timeout; rerun to commit the remaining records")
	}
	return fmt.Errorf("commit stopped (%s): %s", o.Code, o.Error)
}
