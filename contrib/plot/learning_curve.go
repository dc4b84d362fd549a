// Package plot renders the per-iteration metric history the boosting
// controller logs (§4.9 step 3) into a learning-curve PNG, the ambient
// reporting companion to the model itself: not part of the trained
// artifact, but useful the same way the teacher's example plots were.
package plot

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Series is one named metric's value at every recorded iteration.
type Series struct {
	Name   string
	Values []float64
}

// LearningCurve renders one line per series, x-axis the boosting
// iteration, y-axis the metric value, to path as a PNG.
func LearningCurve(title string, series []Series, path string) error {
	if len(series) == 0 {
		return gbdterrors.NewConfigError("series", "at least one series is required")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "metric value"

	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.Values))
		for x, v := range s.Values {
			pts[x].X = float64(x)
			pts[x].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return gbdterrors.NewIOError("plot.LearningCurve", path, err)
		}
		line.Width = vg.Points(1.5)
		line.Color = plotter.DefaultLineStyle.Color
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (%d)", s.Name, i), line)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return gbdterrors.NewIOError("plot.LearningCurve", path, err)
	}
	return nil
}
