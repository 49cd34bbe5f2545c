package domain

import "time"

// ScanHours is how far ahead the intraday scan looks, inclusive of both ends.
const ScanHours = 24

// Window is the hour-level volatility read for one hour of the series.
type Window struct {
	Index      int                 `json:"index"`
	Time       time.Time           `json:"time"`
	Sample     EnvironmentalSample `json:"sample"`
	Scores     SixinScores         `json:"scores"`
	TopFactors []Factor            `json:"top_factors"`
	Volatility int                 `json:"volatility"`
	State      int                 `json:"state"`
	Watch      bool                `json:"watch"`
}

// ScanNext24h scores every hour from nowIndex to nowIndex+24 inclusive,
// clipped to the series. Deltas use a 3 hour lag, unlike the daily score.
func ScanNext24h(series HourlySeries, nowIndex int) []Window {
	if nowIndex < 0 || nowIndex >= len(series) {
		return []Window{}
	}
	end := min(nowIndex+ScanHours, len(series)-1)

	windows := make([]Window, 0, end-nowIndex+1)
	for i := nowIndex; i <= end; i++ {
		sample := series.SampleAt(i, HourlyLagHours)
		scores := Score(sample)
		w := Window{
			Index:      i,
			Time:       series[i].Time,
			Sample:     sample,
			Scores:     scores,
			TopFactors: TopFactors(scores),
			Volatility: scores.Wind,
			State:      scores.State(),
		}
		w.Watch = w.Volatility >= 1 || w.State >= 1
		windows = append(windows, w)
	}
	return windows
}

// WatchWindows filters windows worth surfacing.
func WatchWindows(windows []Window) []Window {
	out := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Watch {
			out = append(out, w)
		}
	}
	return out
}
