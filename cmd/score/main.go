// Command score classifies a questionnaire and computes a forecast offline,
// without Kafka, Redis or the weather API. The weather series comes from a
// JSON file or from one of the built-in fixture scenarios.
//
// Usage:
//
//	go run ./cmd/score -answers answers.json -weather hourly.json -date 2026-01-15
//	go run ./cmd/score -answers answers.json -scenario front
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/fixtures"
	"github.com/jonboulle/clockwork"
)

type options struct {
	answersPath string
	weatherPath string
	scenario    string
	userID      string
	date        string
	flowHint    string
	nowIndex    int
}

type output struct {
	Profile  domain.ConstitutionProfile `json:"profile"`
	Forecast domain.Forecast            `json:"forecast"`
	Watch    []domain.Window            `json:"watch"`
}

func main() {
	var opts options
	flag.StringVar(&opts.answersPath, "answers", "", "questionnaire answers JSON file (required)")
	flag.StringVar(&opts.weatherPath, "weather", "", "hourly weather series JSON file")
	flag.StringVar(&opts.scenario, "scenario", "", "built-in weather scenario when -weather is not given")
	flag.StringVar(&opts.userID, "user", "offline", "user id stamped on the forecast")
	flag.StringVar(&opts.date, "date", fixtures.ForecastDate, "forecast date (YYYY-MM-DD)")
	flag.StringVar(&opts.flowHint, "flow-hint", "", "synoptic flow hint, e.g. \"cold front\"")
	flag.IntVar(&opts.nowIndex, "now-index", -1, "series index of the issue hour (default: 06:00 UTC on -date)")
	flag.Parse()

	if opts.answersPath == "" || (opts.weatherPath == "" && opts.scenario == "") {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(opts options, w io.Writer) error {
	day, err := time.Parse(domain.DateLayout, opts.date)
	if err != nil {
		return fmt.Errorf("invalid -date: %w", err)
	}

	// Fixed clock so repeated runs print identical output.
	domain.SetClock(clockwork.NewFakeClockAt(day))
	defer domain.SetClock(nil)

	var raw domain.RawAnswers
	if err := readJSON(opts.answersPath, &raw); err != nil {
		return fmt.Errorf("read answers: %w", err)
	}
	answers, err := domain.ParseAnswers(raw)
	if err != nil {
		return err
	}

	series, err := loadSeries(opts)
	if err != nil {
		return err
	}

	req := domain.ForecastRequest{
		UserID:   opts.userID,
		Date:     opts.date,
		FlowHint: opts.flowHint,
		Hourly:   series,
	}
	if opts.nowIndex >= 0 {
		req.NowIndex = &opts.nowIndex
	}

	rec := domain.NewProfileRecord("offline", opts.userID, answers)
	f := domain.BuildForecast(req, rec, series)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		Profile:  rec.Profile,
		Forecast: f,
		Watch:    domain.WatchWindows(f.Windows),
	})
}

func loadSeries(opts options) (domain.HourlySeries, error) {
	if opts.weatherPath == "" {
		if !slices.Contains(fixtures.Scenarios, opts.scenario) {
			return nil, fmt.Errorf("unknown scenario %q", opts.scenario)
		}
		return fixtures.Series(opts.scenario), nil
	}
	var series domain.HourlySeries
	if err := readJSON(opts.weatherPath, &series); err != nil {
		return nil, fmt.Errorf("read weather: %w", err)
	}
	return series, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
