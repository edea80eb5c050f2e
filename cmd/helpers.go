package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/derickschaefer/nimbus/internal/location"
	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/render"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// setupLogging installs the process-wide slog handler on w.
// Info by default, Debug with --debug, Error only with --quiet.
func setupLogging(w io.Writer) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel()})))
}

func logLevel() slog.Level {
	switch {
	case globalFlags.Debug:
		return slog.LevelDebug
	case globalFlags.Quiet:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns the --out file when set, or fallback otherwise.
// The returned close func is always non-nil.
func outputWriter(fallback io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result to the command's output honouring --out, then prints
// warnings and verbose stats to stderr unless --quiet.
func emit(stdout io.Writer, result *model.Result, format string) error {
	w, closeFn, err := outputWriter(stdout)
	if err != nil {
		return err
	}
	if err := render.Render(w, result, format); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if !globalFlags.Quiet {
		render.PrintFooter(os.Stderr, result, globalFlags.Verbose)
	}
	return nil
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// humanBytes formats a byte count with a binary unit suffix.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// selectorKeys lists the accepted location arguments, for completion and help.
func selectorKeys() []string {
	keys := make([]string, 0, len(model.AllSelectors))
	for _, s := range model.AllSelectors {
		keys = append(keys, s.Key())
	}
	return keys
}

// buildReportResult wraps a loaded snapshot in a Result envelope.
func buildReportResult(command string, sel model.Selector, st model.StateLoaded, cacheHit bool, started time.Time) *model.Result {
	now := time.Now()
	return &model.Result{
		Kind:        model.KindSnapshot,
		GeneratedAt: now,
		Command:     command,
		Data:        model.NewReport(sel, st.Snapshot, st.Stale, now),
		Stats: model.ResultStats{
			CacheHit:   cacheHit,
			DurationMs: now.Sub(started).Milliseconds(),
			Items:      1,
		},
	}
}

// buildStateResult wraps a non-loaded view state in a Result envelope.
func buildStateResult(command string, sel model.Selector, st model.ViewState) *model.Result {
	return &model.Result{
		Kind:        model.KindState,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        model.NewStateView(sel, st),
	}
}

// buildLocationsResult wraps the selectable locations in a Result envelope.
func buildLocationsResult(command string, sels []model.Selector, selected model.Selector) *model.Result {
	rows := make([]model.LocationRow, 0, len(sels))
	for _, s := range sels {
		row := model.LocationRow{
			Key:      s.Key(),
			Name:     s.DisplayName(),
			Flag:     s.Flag(),
			Selected: s == selected,
		}
		if p, ok := s.Place(); ok {
			c := p.Coordinate
			row.Coord = &c
		}
		rows = append(rows, row)
	}
	return &model.Result{
		Kind:        model.KindLocations,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        rows,
		Stats:       model.ResultStats{Items: len(rows)},
	}
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// linePrompter asks on out and reads a yes/no answer from in.
// Anything other than y or yes denies access.
func linePrompter(in io.Reader, out io.Writer) location.Prompter {
	return func() model.AuthorizationStatus {
		fmt.Fprint(out, "Allow nimbus to estimate your location from your IP address? [y/N] ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return model.AuthorizationDenied
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return model.AuthorizationGranted
		default:
			return model.AuthorizationDenied
		}
	}
}

// terminalPrompter returns a stdin prompter when stdin is interactive.
func terminalPrompter() location.Prompter {
	if !isTerminal(os.Stdin) {
		return nil
	}
	return linePrompter(os.Stdin, os.Stderr)
}
