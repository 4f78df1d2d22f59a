package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"record":    cmdRecord,
	"list":      cmdList,
	"flush":     cmdFlush,
	"clear":     cmdClear,
	"gif":       cmdGif,
	"remote-ls": cmdRemoteList,
	"history":   cmdHistory,
}

func cmdRecord(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("record: at least one path is required")
	}
	if err := a.collector.Append(ctx, args...); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "queued %d file(s)\n", len(args))
	return nil
}

func cmdList(ctx context.Context, a *app, _ []string) error {
	paths, err := a.collector.Pending(ctx)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(a.out, p)
	}
	return nil
}

func cmdFlush(ctx context.Context, a *app, _ []string) error {
	req, err := a.collector.Flush(ctx)
	if err != nil {
		return err
	}
	if req == nil {
		fmt.Fprintln(a.out, "nothing to sync")
		return nil
	}
	fmt.Fprintf(a.out, "sync %s: %d file(s) to %s\n", req.ID, len(req.Files), a.target.Destination())
	return nil
}

func cmdClear(ctx context.Context, a *app, _ []string) error {
	if err := a.collector.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "queue cleared")
	return nil
}

func cmdGif(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("gif", flag.ContinueOnError)
	delay := fs.Int("delay", 0, "Frame delay in hundredths of a second")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return fmt.Errorf("gif: expected <dir> <pattern> <name>, got %d argument(s)", fs.NArg())
	}

	if !a.collector.MakeRemoteGif(fs.Arg(0), fs.Arg(1), fs.Arg(2), *delay) {
		return fmt.Errorf("gif: %s is not below a www/ directory", fs.Arg(0))
	}
	req, err := a.collector.FlushGifs(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "gif %s: %s.gif in %s\n", req.ID, fs.Arg(2), fs.Arg(0))
	return nil
}

func cmdRemoteList(ctx context.Context, a *app, _ []string) error {
	if a.remoteList == nil {
		return fmt.Errorf("remote-ls: no remote configured")
	}
	return a.remoteList(ctx)
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 10, "Number of runs to show, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.ledger == nil {
		return fmt.Errorf("history: DATABASE_URL is not set")
	}

	runs, err := a.ledger.RecentRuns(ctx, *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tFILES\tDURATION\tREQUEST\tERROR")
	for _, run := range runs {
		r := run.Result
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.Transferred, len(run.Files),
			r.Duration().Round(time.Millisecond),
			r.RequestID,
			strings.TrimSpace(strings.Join(append([]string{r.Error}, r.FailedGifs...), " ")),
		)
	}
	return w.Flush()
}
