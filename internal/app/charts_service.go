package app

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"

	"fitlog/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// maxDateLabels caps how many x-axis dates get a printed label.
const maxDateLabels = 12

// ChartsService encapsulates chart data retrieval and rendering.
type ChartsService struct {
	entries *EntryService
}

// NewChartsService creates a ChartsService reading through entries.
func NewChartsService(entries *EntryService) *ChartsService {
	return &ChartsService{entries: entries}
}

// Series holds parallel per-entry sequences for plotting.
type Series struct {
	Dates    []string  `json:"dates"`
	Steps    []int     `json:"steps"`
	Calories []int     `json:"calories"`
	Sleep    []float64 `json:"sleep"`
}

// Len returns the number of points.
func (s Series) Len() int {
	return len(s.Dates)
}

// NewSeries splits entries into parallel sequences, preserving order.
func NewSeries(entries []domain.FitnessEntry) Series {
	return Series{
		Dates:    lo.Map(entries, func(e domain.FitnessEntry, _ int) string { return e.Date }),
		Steps:    lo.Map(entries, func(e domain.FitnessEntry, _ int) int { return e.Steps }),
		Calories: lo.Map(entries, func(e domain.FitnessEntry, _ int) int { return e.Calories }),
		Sleep:    lo.Map(entries, func(e domain.FitnessEntry, _ int) float64 { return e.SleepHours }),
	}
}

// GetSeries returns userID's entries inside r as parallel sequences.
func (s *ChartsService) GetSeries(ctx context.Context, userID int64, r domain.DateRange) (Series, error) {
	entries, err := s.entries.ListRange(ctx, userID, r)
	if err != nil {
		return Series{}, err
	}
	return NewSeries(entries), nil
}

// RenderPNG draws userID's trend chart as a PNG into w.
func (s *ChartsService) RenderPNG(ctx context.Context, userID int64, w io.Writer) error {
	entries, err := s.entries.List(ctx, userID)
	if err != nil {
		return err
	}
	return RenderChart(w, NewSeries(entries), domain.Summarize(entries))
}

// RenderChart draws the three series with a legend and writes a PNG to w.
func RenderChart(w io.Writer, series Series, sum domain.Summary) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Steps %s  |  Calories %s  |  Avg sleep %.2f h",
		humanize.Comma(int64(sum.TotalSteps)), humanize.Comma(int64(sum.TotalCalories)), sum.AverageSleep)
	p.X.Label.Text = "Date"
	p.Legend.Top = true

	if series.Len() == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	} else {
		p.X.Tick.Marker = dateTicks(series.Dates)
		p.X.Tick.Label.Rotation = math.Pi / 4

		lines := []struct {
			name   string
			values []float64
			color  color.RGBA
		}{
			{"Steps", toFloats(series.Steps), color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}},
			{"Calories", toFloats(series.Calories), color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}},
			{"Sleep (hrs)", series.Sleep, color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}},
		}
		for _, l := range lines {
			xys := make(plotter.XYs, len(l.values))
			for i, v := range l.values {
				xys[i].X = float64(i)
				xys[i].Y = v
			}
			line, err := plotter.NewLine(xys)
			if err != nil {
				return fmt.Errorf("chart %s: %w", l.name, err)
			}
			line.LineStyle.Width = vg.Points(2)
			line.LineStyle.Color = l.color
			p.Add(line)
			p.Legend.Add(l.name, line)
		}
	}

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func dateTicks(dates []string) plot.ConstantTicks {
	step := (len(dates) + maxDateLabels - 1) / maxDateLabels
	ticks := make(plot.ConstantTicks, len(dates))
	for i, d := range dates {
		ticks[i].Value = float64(i)
		if i%step == 0 {
			ticks[i].Label = d
		}
	}
	return ticks
}

func toFloats(vs []int) []float64 {
	return lo.Map(vs, func(v int, _ int) float64 { return float64(v) })
}
