package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pgaskin/bluelight/samplelog"
)

// tail implements the tail subcommand.
func tail(ctx context.Context, cfg Config, args []string) int {
	fset := flag.NewFlagSet("tail", flag.ContinueOnError)
	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), "usage: bluelightd tail [-f] [file]\n")
		fset.PrintDefaults()
	}
	follow := fset.Bool("f", false, "print new records as they are written")
	if err := fset.Parse(args); err != nil {
		return 2
	}

	path := cfg.LogFile
	switch fset.NArg() {
	case 0:
	case 1:
		path = fset.Arg(0)
	default:
		fset.Usage()
		return 2
	}

	if !*follow {
		r, err := samplelog.Last(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bluelightd: %s: %v\n", path, err)
			return 1
		}
		printRecord(os.Stdout, samplelog.Participant(path), r, time.Now())
		return 0
	}

	if err := samplelog.Follow(ctx, path, func(r samplelog.Record) {
		printRecord(os.Stdout, samplelog.Participant(path), r, time.Now())
	}); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "bluelightd: %s: %v\n", path, err)
		return 1
	}
	return 0
}

func printRecord(w io.Writer, participant string, r samplelog.Record, now time.Time) {
	active := "inactive"
	if r.Active {
		active = "active"
	}
	fmt.Fprintf(w, "%s: blue %s, filter %s, %s (%s)\n",
		participant,
		strconv.FormatFloat(r.BlueAvg, 'f', 3, 64),
		strconv.FormatFloat(r.FilterLevel, 'f', 3, 64),
		active,
		humanize.RelTime(r.Time, now, "ago", "from now"),
	)
}
