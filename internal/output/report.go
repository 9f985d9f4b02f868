package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coldcall/coldcall/internal/metrics"
)

var reportHeader = []string{
	"Method",
	"Max Size",
	"Min Size",
	"Max Time (s)",
	"Min Time (s)",
	"Avg Time (s)",
	"Avg Size",
	"Total Duration (s)",
	"Total Size",
}

// RenderTable formats set as a box-drawn table, one row per method,
// sorted by method name. Sizes are scaled to the largest decimal unit
// and times are printed in seconds. An empty set renders the header
// only.
func RenderTable(set metrics.ReportSet) string {
	methods := make([]string, 0, len(set))
	for m := range set {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	rows := make([][]string, 0, len(methods))
	for _, m := range methods {
		r := set[m]
		rows = append(rows, []string{
			m,
			formatBytes(r.MaxSize),
			formatBytes(r.MinSize),
			formatSeconds(r.MaxTime),
			formatSeconds(r.MinTime),
			formatSeconds(r.AvgTime),
			formatBytes(r.AvgSize),
			formatSeconds(r.TotalDuration),
			formatBytes(r.TotalSize),
		})
	}
	return renderBox(reportHeader, rows)
}

// PrintReport writes the rendered table to w.
func PrintReport(w io.Writer, set metrics.ReportSet) {
	fmt.Fprint(w, RenderTable(set))
}

// PrintJSONReport writes set as indented JSON. Durations are encoded
// in nanoseconds and sizes in bytes; no display scaling is applied.
func PrintJSONReport(w io.Writer, set metrics.ReportSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.6f", d.Seconds())
}

var byteUnits = []string{"KB", "MB", "GB", "TB", "PB", "EB"}

func formatBytes(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n)
	unit := byteUnits[0]
	for _, u := range byteUnits {
		v /= 1000
		unit = u
		if v < 1000 {
			break
		}
	}
	return fmt.Sprintf("%.2f %s", v, unit)
}

func renderBox(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeBorder(&b, widths, "┌", "┬", "┐")
	writeRow(&b, widths, header)
	writeBorder(&b, widths, "├", "┼", "┤")
	for _, row := range rows {
		writeRow(&b, widths, row)
	}
	writeBorder(&b, widths, "└", "┴", "┘")
	return b.String()
}

func writeBorder(b *strings.Builder, widths []int, left, mid, right string) {
	b.WriteString(left)
	for i, w := range widths {
		if i > 0 {
			b.WriteString(mid)
		}
		b.WriteString(strings.Repeat("─", w+2))
	}
	b.WriteString(right)
	b.WriteByte('\n')
}

func writeRow(b *strings.Builder, widths []int, cells []string) {
	for i, cell := range cells {
		pad := widths[i] - utf8.RuneCountInString(cell)
		b.WriteString("│ ")
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", pad))
		b.WriteString(" ")
	}
	b.WriteString("│\n")
}
