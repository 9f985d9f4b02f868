package output

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/coldcall/coldcall/internal/metrics"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt string
	Target      string
	Calls       int64
	Errors      int64
	Duration    string
	CallsPerSec string
	Methods     []HTMLMethodRow
}

// HTMLMethodRow is one rendered table row of the per-method breakdown.
type HTMLMethodRow struct {
	Method        string
	Count         uint64
	MaxSize       string
	MinSize       string
	AvgSize       string
	TotalSize     string
	MaxTime       string
	MinTime       string
	AvgTime       string
	TotalDuration string
	P50Time       string
	P90Time       string
	P99Time       string
}

// RunSummary carries the run-level figures shown in the report header.
type RunSummary struct {
	Target   string
	Calls    int64
	Errors   int64
	Duration time.Duration
}

// GenerateHTMLReport writes a standalone HTML report for set.
func GenerateHTMLReport(w io.Writer, set metrics.ReportSet, summary RunSummary) error {
	methods := make([]string, 0, len(set))
	for m := range set {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	rows := make([]HTMLMethodRow, 0, len(methods))
	for _, m := range methods {
		r := set[m]
		rows = append(rows, HTMLMethodRow{
			Method:        m,
			Count:         r.Count,
			MaxSize:       formatBytes(r.MaxSize),
			MinSize:       formatBytes(r.MinSize),
			AvgSize:       formatBytes(r.AvgSize),
			TotalSize:     formatBytes(r.TotalSize),
			MaxTime:       formatSeconds(r.MaxTime),
			MinTime:       formatSeconds(r.MinTime),
			AvgTime:       formatSeconds(r.AvgTime),
			TotalDuration: formatSeconds(r.TotalDuration),
			P50Time:       formatSeconds(r.P50Time),
			P90Time:       formatSeconds(r.P90Time),
			P99Time:       formatSeconds(r.P99Time),
		})
	}

	callsPerSec := 0.0
	if secs := summary.Duration.Seconds(); secs > 0 {
		callsPerSec = float64(summary.Calls) / secs
	}
	data := HTMLReportData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Target:      summary.Target,
		Calls:       summary.Calls,
		Errors:      summary.Errors,
		Duration:    summary.Duration.String(),
		CallsPerSec: fmt.Sprintf("%.2f", callsPerSec),
		Methods:     rows,
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Coldcall Extraction Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #0f766e 0%, #155e75 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #0f766e;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Coldcall Extraction Report</h1>
            {{if .Target}}
            <div class="meta" style="margin-top: 5px;">Target: {{.Target}}</div>
            {{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{.Duration}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Total Calls</h3>
                    <div class="value">{{.Calls}}</div>
                </div>
                <div class="card error">
                    <h3>Errors</h3>
                    <div class="value">{{.Errors}}</div>
                </div>
                <div class="card">
                    <h3>Calls/sec</h3>
                    <div class="value">{{.CallsPerSec}}</div>
                </div>
            </div>

            <div class="section">
                <h2>Method Breakdown</h2>
                {{if .Methods}}
                <table>
                    <thead>
                        <tr>
                            <th>Method</th>
                            <th>Count</th>
                            <th>Max Size</th>
                            <th>Min Size</th>
                            <th>Avg Size</th>
                            <th>Total Size</th>
                            <th>Max Time (s)</th>
                            <th>Min Time (s)</th>
                            <th>Avg Time (s)</th>
                            <th>P50 (s)</th>
                            <th>P90 (s)</th>
                            <th>P99 (s)</th>
                            <th>Total Duration (s)</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Methods}}
                        <tr>
                            <td><strong>{{.Method}}</strong></td>
                            <td>{{.Count}}</td>
                            <td>{{.MaxSize}}</td>
                            <td>{{.MinSize}}</td>
                            <td>{{.AvgSize}}</td>
                            <td>{{.TotalSize}}</td>
                            <td>{{.MaxTime}}</td>
                            <td>{{.MinTime}}</td>
                            <td>{{.AvgTime}}</td>
                            <td>{{.P50Time}}</td>
                            <td>{{.P90Time}}</td>
                            <td>{{.P99Time}}</td>
                            <td>{{.TotalDuration}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
                {{else}}
                <div class="no-data">No calls completed.</div>
                {{end}}
            </div>
        </div>
    </div>
</body>
</html>
`
