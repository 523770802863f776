// Package observability provides formatted CLI output for runs, indexes and conversations.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/transcript-pipeline/internal/diarize"
	"github.com/jonathan/transcript-pipeline/internal/pipeline"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress writes one progress line per job event.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(ev pipeline.ProgressEvent) {
	switch {
	case ev.Stage != "":
		fmt.Fprintf(p.out, "Job %d/%d: %s failed at %s (%s)\n", ev.Index, ev.Total, ev.Key, ev.Stage, ev.Status)
	default:
		fmt.Fprintf(p.out, "Job %d/%d: %s %s\n", ev.Index, ev.Total, ev.Key, ev.Message)
	}
}

// PrintSummary outputs the processed/skipped/failed/deferred counts of a run.
func (p *Printer) PrintSummary(sum pipeline.Summary) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run:        %s\n", sum.RunID))
	sb.WriteString(fmt.Sprintf("Jobs:       %d\n", sum.Total))
	sb.WriteString(fmt.Sprintf("Processed:  %d\n", sum.Processed))
	sb.WriteString(fmt.Sprintf("Completed:  %d\n", sum.Completed))
	sb.WriteString(fmt.Sprintf("Skipped:    %d\n", sum.Skipped))
	sb.WriteString(fmt.Sprintf("Failed:     %d\n", sum.Failed))
	sb.WriteString(fmt.Sprintf("Deferred:   %d\n", sum.Deferred))
	if sum.Healed > 0 || sum.Reconciled > 0 {
		sb.WriteString(fmt.Sprintf("Healed:     %d\n", sum.Healed))
		sb.WriteString(fmt.Sprintf("Reconciled: %d\n", sum.Reconciled))
	}

	if len(sum.Failures) > 0 {
		sb.WriteString("\nFailures:\n")
		count := min(len(sum.Failures), maxItemsToShow)
		for i := 0; i < count; i++ {
			f := sum.Failures[i]
			sb.WriteString(fmt.Sprintf("  • %s [%s] %s\n", f.Key, f.Stage, f.Error))
		}
		if len(sum.Failures) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(sum.Failures)-maxItemsToShow))
		}
	}

	p.printBox("RUN SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintReconstruction outputs the outcome of a reconstruct-all batch.
func (p *Printer) PrintReconstruction(results []diarize.Result) {
	var built, skipped, moved int
	var failed []diarize.Result
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed = append(failed, res)
		case res.Skipped:
			skipped++
		default:
			built++
		}
		if res.Moved {
			moved++
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Transcripts: %d\n", len(results)))
	sb.WriteString(fmt.Sprintf("Built:       %d\n", built))
	sb.WriteString(fmt.Sprintf("Skipped:     %d\n", skipped))
	sb.WriteString(fmt.Sprintf("Failed:      %d\n", len(failed)))
	if moved > 0 {
		sb.WriteString(fmt.Sprintf("Relocated:   %d\n", moved))
	}
	if len(failed) > 0 {
		sb.WriteString("\nFailures:\n")
		for i := 0; i < min(len(failed), maxItemsToShow); i++ {
			sb.WriteString(fmt.Sprintf("  • %s %v\n", failed[i].Key, failed[i].Err))
		}
		if len(failed) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(failed)-maxItemsToShow))
		}
	}

	p.printBox("RECONSTRUCTION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintIndex outputs per-status counts followed by one line per record.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintIndex(idx types.Index, showAll bool) {
	counts := idx.CountByStatus()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Jobs: %d\n", len(idx)))
	for _, st := range types.AllStatuses {
		if n := counts[st]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %-22s %d\n", st, n))
		}
	}
	p.printBox("JOB INDEX", strings.TrimSuffix(sb.String(), "\n"))

	keys := idx.Keys()
	if len(keys) == 0 {
		return
	}
	fmt.Fprintf(p.out, "%-24s %-22s %s\n", "KEY", "STATUS", "DETAIL")
	for _, key := range keys {
		rec := idx[key]
		if !showAll && rec.Status == types.StatusCompleted {
			continue
		}
		detail := rec.Title
		if rec.LastError != "" {
			detail = rec.LastError
		}
		fmt.Fprintf(p.out, "%-24s %-22s %s\n", key, rec.Status, detail)
	}
}

// PrintConversation writes a conversation as "[mm:ss] Speaker: text" lines.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintConversation(conv *types.Conversation) {
	if conv == nil {
		return
	}
	for _, seg := range conv.Segments {
		fmt.Fprintf(p.out, "[%s] %s: %s\n", timestamp(seg.Start), seg.Speaker, seg.Text)
	}
}

// timestamp formats a millisecond offset as mm:ss or h:mm:ss.
func timestamp(ms *float64) string {
	if ms == nil {
		return "--:--"
	}
	total := int(*ms / 1000)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
