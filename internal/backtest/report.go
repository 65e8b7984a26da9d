package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"simex/internal/store/runstore"
)

const (
	reportColorEquity  = "#3b82f6"
	reportColorBalance = "#34d399"
	reportWidthPx      = 1200
	reportHeightPx     = 520
)

// Reporter renders a run's equity curve to a standalone HTML file under
// the data root.
type Reporter struct {
	results *runstore.Store
	dir     string
}

func NewReporter(results *runstore.Store, dataRoot string) (*Reporter, error) {
	dir := filepath.Join(dataRoot, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory failed: %w", err)
	}
	return &Reporter{results: results, dir: dir}, nil
}

// Render builds (or rebuilds) the report for runID and returns the file
// path.
func (r *Reporter) Render(ctx context.Context, runID string) (string, error) {
	run, err := r.results.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	snaps, err := r.results.ListSnapshots(ctx, runID)
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "", fmt.Errorf("run %s has no equity snapshots", runID)
	}

	xAxis := make([]string, 0, len(snaps))
	equity := make([]opts.LineData, 0, len(snaps))
	balance := make([]opts.LineData, 0, len(snaps))
	for _, snap := range snaps {
		xAxis = append(xAxis, time.UnixMilli(snap.TS).UTC().Format("2006-01-02 15:04"))
		equity = append(equity, opts.LineData{Value: snap.Equity})
		balance = append(balance, opts.LineData{Value: snap.Balance})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("simex run %s", runID),
			Width:     fmt.Sprintf("%dpx", reportWidthPx),
			Height:    fmt.Sprintf("%dpx", reportHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s %s equity", run.Symbol, run.Timeframe),
			Subtitle: fmt.Sprintf("strategy=%s profit=%.2f return=%.2f%% maxDD=%.2f%%",
				run.Strategy, run.Profit, run.ReturnPct*100, run.MaxDrawdownPct*100),
			Left: "left",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("Equity", equity, charts.WithLineStyleOpts(opts.LineStyle{Color: reportColorEquity, Width: 2}))
	line.AddSeries("Balance", balance, charts.WithLineStyleOpts(opts.LineStyle{Color: reportColorBalance, Width: 2}))
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	path := filepath.Join(r.dir, fmt.Sprintf("%s.html", runID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report file failed: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return "", fmt.Errorf("rendering report failed: %w", err)
	}
	return path, nil
}
