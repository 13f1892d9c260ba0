// Package report renders the per-label evaluation stats of a training run
// as a text table or a grouped bar chart.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/pp"
)

// collect returns the sorted labels, the sorted composite ids seen across
// them and the metric value of every (label, id) pair that has it.
func collect(stats *pp.StatsRegistry, metric string) ([]string, []string, map[string]map[string]float64) {
	categories := stats.Categories()
	ids := make(map[string]bool)
	values := make(map[string]map[string]float64, len(categories))
	for _, c := range categories {
		entries, _ := stats.Category(c)
		values[c] = make(map[string]float64, len(entries))
		for id, m := range entries {
			if v, ok := m[metric]; ok {
				values[c][id] = v
				ids[id] = true
			}
		}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	return categories, sorted, values
}

// WriteTable renders one row per (label, composite id) with every metric
// recorded for it, score first and the other metrics in sorted order.
func WriteTable(w io.Writer, stats *pp.StatsRegistry) error {
	keys := make(map[string]bool)
	for _, c := range stats.Categories() {
		entries, _ := stats.Category(c)
		for _, m := range entries {
			for k := range m {
				keys[k] = true
			}
		}
	}
	metrics := []string{pp.ScoreKey}
	for k := range keys {
		if k != pp.ScoreKey {
			metrics = append(metrics, k)
		}
	}
	sort.Strings(metrics[1:])

	t := table.NewWriter()
	header := table.Row{"Label", "Model"}
	for _, k := range metrics {
		header = append(header, k)
	}
	t.AppendHeader(header)

	for _, c := range stats.Categories() {
		entries, _ := stats.Category(c)
		ids := make([]string, 0, len(entries))
		for id := range entries {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			row := table.Row{c, id}
			for _, k := range metrics {
				if v, ok := entries[id][k]; ok {
					row = append(row, fmt.Sprintf("%.4f", v))
				} else {
					row = append(row, "-")
				}
			}
			t.AppendRow(row)
		}
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Plot builds a grouped bar chart of metric: one group per label, one bar
// per composite id. Missing values are drawn as zero-height bars.
func Plot(stats *pp.StatsRegistry, metric string) (*plot.Plot, error) {
	categories, ids, values := collect(stats, metric)
	if len(ids) == 0 {
		return nil, errors.NewValueError("report.Plot", fmt.Sprintf("no %q values to plot", metric))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s by label", metric)
	p.Y.Label.Text = metric
	p.Legend.Top = true

	width := vg.Points(40 / float64(len(ids)))
	if width < vg.Points(2) {
		width = vg.Points(2)
	}
	for i, id := range ids {
		vals := make(plotter.Values, len(categories))
		for j, c := range categories {
			vals[j] = values[c][id]
		}
		bars, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return nil, errors.Wrapf(err, "bars for %s", id)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = width * vg.Length(float64(i)-float64(len(ids)-1)/2)
		p.Add(bars)
		p.Legend.Add(id, bars)
	}
	p.NominalX(categories...)
	return p, nil
}

// PlotStats renders Plot(stats, metric) to path. The image format follows
// the file extension, e.g. .png or .svg.
func PlotStats(stats *pp.StatsRegistry, metric, path string) error {
	p, err := Plot(stats, metric)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}
