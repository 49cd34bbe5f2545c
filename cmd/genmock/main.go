// Command genmock writes the questionnaire and forecast-request fixtures under
// data/mock and prints the forecast each request produces, which is what the
// pipeline and integration tests assert against.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -answers-out data/mock/profile_answers.json \
//	  -requests-out data/mock/forecast_requests.json
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/fixtures"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	answersOut := flag.String("answers-out", fixtures.AnswersPath, "output path for the answers fixture")
	requestsOut := flag.String("requests-out", fixtures.RequestsPath, "output path for the forecast request fixture")
	flag.Parse()

	// Set a fixed clock for reproducible CreatedAt and ComputedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.January, 15, 5, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	answers := fixtures.Answers()
	requests := fixtures.Requests()

	if err := fixtures.WriteJSON(*answersOut, answers); err != nil {
		return fmt.Errorf("writing answers fixture: %w", err)
	}
	log.Printf("wrote answers fixture: %s (%d users)", *answersOut, len(answers))

	if err := fixtures.WriteJSON(*requestsOut, requests); err != nil {
		return fmt.Errorf("writing request fixture: %w", err)
	}
	log.Printf("wrote request fixture: %s (%d requests)", *requestsOut, len(requests))

	forecasts, err := buildForecasts(answers, requests)
	if err != nil {
		return err
	}
	printStats(forecasts)
	return nil
}

type scenarioForecast struct {
	scenario string
	forecast domain.Forecast
}

func buildForecasts(answers []fixtures.AnswersFixture, requests []fixtures.RequestFixture) ([]scenarioForecast, error) {
	records := make(map[string]domain.ProfileRecord, len(answers))
	for _, af := range answers {
		a, err := domain.ParseAnswers(af.Answers)
		if err != nil {
			return nil, fmt.Errorf("answers for %s: %w", af.UserID, err)
		}
		records[af.UserID] = domain.NewProfileRecord("evt-"+af.UserID, af.UserID, a)
	}

	out := make([]scenarioForecast, 0, len(requests))
	for _, rf := range requests {
		rec, ok := records[rf.Request.UserID]
		if !ok {
			return nil, fmt.Errorf("request for %s has no answers fixture", rf.Request.UserID)
		}
		out = append(out, scenarioForecast{
			scenario: rf.Scenario,
			forecast: domain.BuildForecast(rf.Request, rec, rf.Request.Hourly),
		})
	}
	return out, nil
}

func printStats(forecasts []scenarioForecast) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(forecasts))

	levels := map[string]int{}
	for _, sf := range forecasts {
		levels[sf.forecast.Assessment.LevelLabel]++
	}
	fmt.Printf("By level: stable=%d, caution=%d, alert=%d\n",
		levels["stable"], levels["caution"], levels["alert"])

	sort.Slice(forecasts, func(i, j int) bool { return forecasts[i].scenario < forecasts[j].scenario })
	for _, sf := range forecasts {
		f := sf.forecast
		fmt.Printf("%-10s core=%-22s scores=%+v top=%v risk=%d (%s) watch=%d\n",
			sf.scenario, f.CoreCode, f.Scores, f.TopFactors,
			f.Assessment.Risk, f.Assessment.LevelLabel, len(domain.WatchWindows(f.Windows)))
		if len(f.Assessment.Chips) > 0 {
			fmt.Printf("%-10s chips: %s\n", "", strings.Join(f.Assessment.Chips, "; "))
		}
	}
}
