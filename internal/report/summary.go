package report

import (
	"math"

	"github.com/ayusman/hueassay/internal/sampler"
)

// Stats describes one region's hue over a run.
type Stats struct {
	First float64 `json:"first"`
	Last  float64 `json:"last"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	// Delta is Last minus First.
	Delta float64 `json:"delta"`
}

// Summary condenses a time series for the results panel.
type Summary struct {
	Samples    int     `json:"samples"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Reaction   Stats   `json:"reaction"`
	Background Stats   `json:"background"`
	// Contrast is the mean of HueReaction minus HueBackground.
	Contrast float64 `json:"contrast"`
}

// Summarize computes a Summary. An empty series yields the zero value.
func Summarize(series sampler.TimeSeries) Summary {
	if len(series) == 0 {
		return Summary{}
	}

	reaction := make([]float64, len(series))
	background := make([]float64, len(series))
	var contrast float64
	for i, s := range series {
		reaction[i] = s.HueReaction
		background[i] = s.HueBackground
		contrast += s.HueReaction - s.HueBackground
	}

	return Summary{
		Samples:    len(series),
		Start:      series[0].Time,
		End:        series[len(series)-1].Time,
		Reaction:   stats(reaction),
		Background: stats(background),
		Contrast:   round2(contrast / float64(len(series))),
	}
}

func stats(values []float64) Stats {
	st := Stats{
		First: values[0],
		Last:  values[len(values)-1],
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
	}

	var sum float64
	for _, v := range values {
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
		sum += v
	}
	st.Mean = round2(sum / float64(len(values)))
	st.Delta = round2(st.Last - st.First)
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
