package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/coldcall/coldcall/internal/metrics"
)

// RunConfig holds extraction parameters for display.
type RunConfig struct {
	TargetURL  string        // JSON-RPC endpoint
	Transport  string        // http or websocket
	Datasets   []string      // Datasets being extracted
	Workers    int           // Number of concurrent workers
	Rate       int           // Calls per second limit (0 = unlimited)
	Timeout    time.Duration // Per-call timeout
	Retries    int           // Retries per call
	TotalCalls int64         // Planned call count (0 = unknown)
	ConfigFile string        // Path to config file if used
}

// Dashboard renders a live terminal UI for extraction progress.
type Dashboard struct {
	counters     *metrics.Counters
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid          *ui.Grid
	rateSparkle   *widgets.SparklineGroup
	progressGauge *widgets.Gauge
	methodList    *widgets.List
	summaryPara   *widgets.Paragraph
	countersPara  *widgets.Paragraph
	rateHistory   []float64
	runConfig     RunConfig
}

// New creates a new Dashboard.
func New(counters *metrics.Counters, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		counters:     counters,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		rateHistory:  make([]float64, 0, 100),
		runConfig:    cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	// Call rate sparkline
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Calls/sec"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.rateSparkle = widgets.NewSparklineGroup(sparkline)
	d.rateSparkle.Title = "Call Rate"
	d.rateSparkle.BorderStyle.Fg = ui.ColorCyan

	// Progress gauge
	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Extraction Progress"
	d.progressGauge.Percent = 0
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	// Per-method list
	d.methodList = widgets.NewList()
	d.methodList.Title = "Methods"
	d.methodList.Rows = []string{"Awaiting data"}
	d.methodList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.methodList.BorderStyle.Fg = ui.ColorCyan

	// Summary paragraph
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Extraction Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	// Counters paragraph
	d.countersPara = widgets.NewParagraph()
	d.countersPara.Title = "Counters"
	d.countersPara.Text = "Waiting for data..."
	d.countersPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.18,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(1.0, d.progressGauge),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.6, d.rateSparkle),
			ui.NewCol(0.4, d.countersPara),
		),
		ui.NewRow(0.34,
			ui.NewCol(1.0, d.methodList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			// Check if context is done to avoid blocking
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the counters.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.counters.Snapshot()

	d.rateHistory = append(d.rateHistory, snap.CallsPerSec)
	if len(d.rateHistory) > 100 {
		d.rateHistory = d.rateHistory[1:]
	}
	d.rateSparkle.Sparklines[0].Data = d.rateHistory
	d.rateSparkle.Title = fmt.Sprintf("Call Rate | Current: %.1f/s", snap.CallsPerSec)

	if d.runConfig.TotalCalls > 0 {
		percent := int((float64(snap.Emitted) / float64(d.runConfig.TotalCalls)) * 100)
		if percent > 100 {
			percent = 100
		}
		d.progressGauge.Percent = percent
		d.progressGauge.Label = fmt.Sprintf("%d / %d calls", snap.Emitted, d.runConfig.TotalCalls)
	} else {
		d.progressGauge.Label = fmt.Sprintf("%d calls", snap.Emitted)
	}

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s",
		d.runConfig.TargetURL,
		d.formatRunParams(),
		snap.Elapsed.Round(time.Second),
	)

	d.countersPara.Text = fmt.Sprintf(
		"Calls:       %d\nDropped:     %d\nData:        %s\nCalls/sec:   %.2f",
		snap.Emitted,
		snap.Dropped,
		formatBytes(snap.Bytes),
		snap.CallsPerSec,
	)

	d.updateMethodList(snap)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) updateMethodList(snap metrics.Snapshot) {
	if len(snap.ByMethod) == 0 {
		d.methodList.Rows = []string{"[No calls yet](fg:green)"}
		return
	}
	type methodRow struct {
		name  string
		count int64
	}
	rows := make([]methodRow, 0, len(snap.ByMethod))
	for name, count := range snap.ByMethod {
		rows = append(rows, methodRow{name: name, count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count == rows[j].count {
			return rows[i].name < rows[j].name
		}
		return rows[i].count > rows[j].count
	})
	formatted := make([]string, 0, len(rows))
	for _, entry := range rows {
		share := 0.0
		if snap.Emitted > 0 {
			share = (float64(entry.count) / float64(snap.Emitted)) * 100
		}
		formatted = append(formatted, fmt.Sprintf("[%s](fg:cyan) | %6d | %5.1f%%",
			entry.name,
			entry.count,
			share,
		))
	}
	d.methodList.Rows = formatted
}

func formatBytes(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KB", "MB", "GB", "TB", "PB", "EB"}
	v := float64(n)
	unit := units[0]
	for _, u := range units {
		v /= 1000
		unit = u
		if v < 1000 {
			break
		}
	}
	return fmt.Sprintf("%.2f %s", v, unit)
}

// formatRunParams formats the extraction parameters for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.runConfig.Transport != "" && d.runConfig.Transport != "http" {
		parts = append(parts, fmt.Sprintf("Transport: %s", d.runConfig.Transport))
	}

	if len(d.runConfig.Datasets) > 0 {
		parts = append(parts, fmt.Sprintf("Datasets: %s", strings.Join(d.runConfig.Datasets, ",")))
	}

	if d.runConfig.Workers > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", d.runConfig.Workers))
	}

	if d.runConfig.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", d.runConfig.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if d.runConfig.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.runConfig.Timeout))
	}

	if d.runConfig.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", d.runConfig.Retries))
	}

	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, " | ")
}
