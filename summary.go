package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"go_superres/history"
	"go_superres/superres"
)

// printSummary prints one line per image followed by the batch totals.
func printSummary(w io.Writer, res *superres.BatchResult) {
	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintf(w, "━━━ Batch %s ━━━\n", res.BatchID)

	dim := color.New(color.FgHiBlack)
	for _, img := range res.Images {
		switch {
		case img.Skipped:
			color.New(color.FgHiBlack).Fprintf(w, "  ○ %s", img.Source)
			dim.Fprintln(w, " - skipped")
		case img.Err != nil:
			color.New(color.FgRed).Fprintf(w, "  ✗ %s\n", img.Source)
			color.New(color.FgRed).Fprintf(w, "    └─ %s\n", img.Err.Error())
		default:
			color.New(color.FgGreen).Fprintf(w, "  ✓ %s", img.Source)
			dim.Fprintf(w, " -> %s (%v)\n", img.Output, img.Duration.Round(time.Millisecond))
		}
	}

	fmt.Fprintln(w)
	totals := fmt.Sprintf("(%d succeeded, %d failed, %d skipped in %v)",
		res.Succeeded(), res.Failed(), res.Skipped(), res.Duration.Round(time.Millisecond))
	if res.Failed() == 0 && res.Skipped() == 0 {
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprint(w, "━━━ Done ")
		dim.Fprint(w, totals)
		ok.Fprintln(w, " ━━━")
	} else {
		bad := color.New(color.FgYellow, color.Bold)
		bad.Fprint(w, "━━━ Finished with problems ")
		dim.Fprint(w, totals)
		bad.Fprintln(w, " ━━━")
	}
	fmt.Fprintln(w)
}

// historyView is what the history command prints.
type historyView struct {
	Path    string
	Schema  uint
	Dirty   bool
	Counts  map[string]int
	Entries []history.Entry
}

// printHistory prints the status totals followed by one line per entry.
func printHistory(w io.Writer, v historyView) {
	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintf(w, "━━━ History %s ━━━\n", v.Path)

	dim := color.New(color.FgHiBlack)
	schema := fmt.Sprintf("schema v%d", v.Schema)
	if v.Dirty {
		schema += " (dirty)"
	}
	dim.Fprintf(w, "  %s", schema)

	statuses := make([]string, 0, len(v.Counts))
	for status := range v.Counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		dim.Fprintf(w, ", %s %d", status, v.Counts[status])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if len(v.Entries) == 0 {
		dim.Fprintln(w, "  no jobs recorded")
		fmt.Fprintln(w)
		return
	}

	for _, e := range v.Entries {
		when := humanize.Time(e.CreatedAt)
		if e.Status == history.StatusSuccess {
			color.New(color.FgGreen).Fprintf(w, "  ✓ [%s] %s", e.Mode, e.SourcePath)
			dim.Fprintf(w, " -> %s (%s, %v, %s)\n", e.OutputPath, e.Backend, e.Duration.Round(time.Millisecond), when)
			continue
		}
		color.New(color.FgRed).Fprintf(w, "  ✗ [%s] %s", e.Mode, e.SourcePath)
		dim.Fprintf(w, " - %s (%s, %s)\n", e.Status, e.Backend, when)
		if e.ErrorMessage != "" {
			color.New(color.FgRed).Fprintf(w, "    └─ %s\n", e.ErrorMessage)
		}
	}
	fmt.Fprintln(w)
}
