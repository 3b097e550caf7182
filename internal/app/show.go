package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
)

// Show prints the tail of a fund's cached NAV series.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Fund == "" {
		return errors.New("--fund is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	seriesCache, _, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	series, err := seriesCache.Load(ctx, opts.Fund)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Fprintf(os.Stdout, "no cached records for fund %s\n", opts.Fund)
		return nil
	}

	tail := series.Window(opts.Limit)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tNAV")
	for _, r := range tail {
		fmt.Fprintf(writer, "%s\t%s\n", r.Date.Format("2006-01-02"), r.Value.StringFixed(4))
	}
	writer.Flush()

	fmt.Fprintf(os.Stdout, "%d of %d cached records\n", len(tail), len(series))
	return nil
}
