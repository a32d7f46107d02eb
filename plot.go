package main

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"q2048/qlearning"
)

// plotLearningProgress writes per-episode score and total reward as a PNG.
func plotLearningProgress(results []qlearning.EpisodeResult, filePath string) error {
	if len(results) == 0 {
		return errors.New("no episodes to plot")
	}
	p := plot.New()

	p.Title.Text = "Learning Progress"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Value"

	scores := make(plotter.XYs, len(results))
	rewards := make(plotter.XYs, len(results))
	for i, r := range results {
		scores[i].X = float64(r.Episode)
		scores[i].Y = r.Score
		rewards[i].X = float64(r.Episode)
		rewards[i].Y = r.Reward
	}

	scoreLine, err := plotter.NewLine(scores)
	if err != nil {
		return errors.Wrap(err, "score line")
	}
	rewardLine, err := plotter.NewLine(rewards)
	if err != nil {
		return errors.Wrap(err, "reward line")
	}
	rewardLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(scoreLine, rewardLine)
	p.Legend.Add("Max tile", scoreLine)
	p.Legend.Add("Total reward", rewardLine)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "saving plot to %s", filePath)
	}
	return nil
}
