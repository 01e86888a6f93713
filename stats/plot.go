package stats

import (
	"errors"
	"os"
	"path"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var ErrNoData = errors.New("no training epochs to plot")

type series struct {
	file  string
	label string
	value func(EpochStats) float64
}

var charts = []series{
	{"reward.png", "Total reward", func(e EpochStats) float64 { return e.TotalReward }},
	{"epsilon.png", "Epsilon", func(e EpochStats) float64 { return e.Epsilon }},
	{"frames.png", "Frames", func(e EpochStats) float64 { return float64(e.Frames) }},
}

// Plot draws one chart per tracked quantity over the training epochs into plotPath
// and returns the files written
func Plot(all []EpochStats, plotPath string) ([]string, error) {
	points := make([]EpochStats, 0, len(all))
	for _, e := range all {
		if e.Phase != PhaseFill {
			points = append(points, e)
		}
	}
	if len(points) == 0 {
		return nil, ErrNoData
	}
	if err := os.MkdirAll(plotPath, os.ModePerm); err != nil {
		return nil, err
	}

	files := make([]string, 0, len(charts))
	for i, c := range charts {
		p := plot.New()
		p.Title.Text = c.label + " per epoch"
		p.X.Label.Text = "Epoch"
		p.Y.Label.Text = c.label

		xys := make(plotter.XYs, len(points))
		for j, e := range points {
			xys[j] = plotter.XY{
				X: float64(e.Epoch),
				Y: c.value(e),
			}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return files, err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)

		file := path.Join(plotPath, c.file)
		if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
			return files, err
		}
		files = append(files, file)
	}
	return files, nil
}
