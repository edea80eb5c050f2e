// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/util"
	"github.com/olekukonko/tablewriter"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatMD    = "md"
)

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindSnapshot:
		r, ok := result.Data.(*model.Report)
		if !ok {
			return fmt.Errorf("unexpected data type for snapshot")
		}
		return renderReportTable(w, r, result.GeneratedAt)
	case model.KindLocations:
		rows, ok := result.Data.([]model.LocationRow)
		if !ok {
			return fmt.Errorf("unexpected data type for locations")
		}
		return renderLocationsTable(w, rows)
	case model.KindState:
		v, ok := result.Data.(*model.StateView)
		if !ok {
			return fmt.Errorf("unexpected data type for state")
		}
		return renderFieldTable(w, stateFields(v))
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

func renderReportTable(w io.Writer, r *model.Report, now time.Time) error {
	return renderFieldTable(w, reportFields(r, now))
}

func renderFieldTable(w io.Writer, rows [][]string) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"FIELD", "VALUE"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetColWidth(60)
	tw.SetAutoWrapText(true)
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
	return nil
}

func renderLocationsTable(w io.Writer, rows []model.LocationRow) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"", "KEY", "NAME", "COORDINATES"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	for _, row := range rows {
		tw.Append([]string{
			marker(row.Selected),
			row.Key,
			row.Flag + " " + row.Name,
			coordText(row.Coord),
		})
	}
	tw.Render()
	return nil
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindSnapshot:
		r, ok := result.Data.(*model.Report)
		if !ok {
			return renderJSON(w, result)
		}
		fmt.Fprintf(w, "### %s\n\n", mdEscape(r.Snapshot.Place))
		writeMDFields(w, reportFields(r, result.GeneratedAt))
		return nil
	case model.KindLocations:
		rows, ok := result.Data.([]model.LocationRow)
		if !ok {
			return renderJSON(w, result)
		}
		fmt.Fprintf(w, "|   | KEY | NAME | COORDINATES |\n|---|-----|------|-------------|\n")
		for _, row := range rows {
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
				marker(row.Selected), row.Key, mdEscape(row.Flag+" "+row.Name), coordText(row.Coord))
		}
		return nil
	case model.KindState:
		v, ok := result.Data.(*model.StateView)
		if !ok {
			return renderJSON(w, result)
		}
		writeMDFields(w, stateFields(v))
		return nil
	default:
		return renderJSON(w, result)
	}
}

func writeMDFields(w io.Writer, rows [][]string) {
	fmt.Fprintf(w, "| FIELD | VALUE |\n|-------|-------|\n")
	for _, r := range rows {
		fmt.Fprintf(w, "| %s | %s |\n", r[0], mdEscape(r[1]))
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := "live"
		if result.Stats.CacheHit {
			src = "cache"
		}
		fmt.Fprintf(w, "\n[%s • %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
			src,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func reportFields(r *model.Report, now time.Time) [][]string {
	s := r.Snapshot
	place := s.Place
	if s.Country != "" {
		place += ", " + s.Country
	}
	period := "night"
	if r.Daytime {
		period = "day"
	}
	updated := util.FormatAge(now, s.FetchedAt)
	if r.Stale {
		updated += " (stale, refreshing)"
	}
	return [][]string{
		{"Location", place},
		{"Conditions", util.Title(s.Description)},
		{"Category", r.Category + " (" + period + ")"},
		{"Temperature", util.FormatTemp(s.Temp)},
		{"Feels Like", util.FormatTemp(s.FeelsLike)},
		{"Low / High", util.FormatTemp(s.TempMin) + " / " + util.FormatTemp(s.TempMax)},
		{"Humidity", fmt.Sprintf("%d%%", s.Humidity)},
		{"Pressure", fmt.Sprintf("%d hPa", s.Pressure)},
		{"Wind", util.FormatWind(s.WindSpeed)},
		{"Sunrise", util.FormatClock(s.Sunrise, s.TimezoneOffset)},
		{"Sunset", util.FormatClock(s.Sunset, s.TimezoneOffset)},
		{"Updated", updated},
	}
}

func stateFields(v *model.StateView) [][]string {
	rows := [][]string{
		{"Location", v.Selector},
		{"State", v.State},
	}
	if v.Message != "" {
		rows = append(rows,
			[]string{"Message", v.Message},
			[]string{"Reason", v.Reason},
			[]string{"Suggestion", v.Suggestion},
		)
	}
	return rows
}

func marker(selected bool) string {
	if selected {
		return "*"
	}
	return ""
}

func coordText(c *model.Coordinate) string {
	if c == nil {
		return "device"
	}
	return c.String()
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
