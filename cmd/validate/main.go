// Command validate performs integrity checks over the mock fixtures: the
// committed JSON matches what genmock would write, every questionnaire
// validates and classifies deterministically, and every forecast respects the
// score and risk ranges.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -answers data/mock/profile_answers.json \
//	  -requests data/mock/forecast_requests.json
package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/fixtures"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	answersPath := flag.String("answers", fixtures.AnswersPath, "path to the answers fixture")
	requestsPath := flag.String("requests", fixtures.RequestsPath, "path to the forecast request fixture")
	flag.Parse()

	if code := run(*answersPath, *requestsPath); code != 0 {
		os.Exit(code)
	}
}

func run(answersPath, requestsPath string) int {
	// Set a fixed clock matching genmock.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.January, 15, 5, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Constitution Forecast Fixture Validation ===")
	fmt.Println()

	answers, err := fixtures.LoadAnswers(answersPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load answers: %v\n", err)
		return 1
	}
	requests, err := fixtures.LoadRequests(requestsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load requests: %v\n", err)
		return 1
	}

	records, answersPhase := validateAnswers(answers)
	phases := []*phase{
		validateFixtureParity(answers, requests),
		answersPhase,
		validateClassification(answers),
		validateForecasts(requests, records),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d answers, %d forecast requests\n", len(answers), len(requests))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: committed fixtures match the generator ──

func validateFixtureParity(answers []fixtures.AnswersFixture, requests []fixtures.RequestFixture) *phase {
	p := &phase{name: "Phase 1: Fixture parity with genmock"}
	if diff := cmp.Diff(fixtures.Answers(), answers); diff != "" {
		p.errorf("answers fixture is stale (-generated +file):\n%s", diff)
	}
	if diff := cmp.Diff(fixtures.Requests(), requests); diff != "" {
		p.errorf("request fixture is stale (-generated +file):\n%s", diff)
	}
	return p
}

// ── Phase 2: answers validate ──

func validateAnswers(answers []fixtures.AnswersFixture) (map[string]domain.ProfileRecord, *phase) {
	p := &phase{name: "Phase 2: Questionnaire validation"}
	records := make(map[string]domain.ProfileRecord, len(answers))
	for _, af := range answers {
		if _, dup := records[af.UserID]; dup {
			p.errorf("duplicate user id %s", af.UserID)
			continue
		}
		a, err := domain.ParseAnswers(af.Answers)
		if err != nil {
			p.errorf("%s: %v", af.UserID, err)
			continue
		}
		records[af.UserID] = domain.NewProfileRecord("evt-"+af.UserID, af.UserID, a)
	}
	return records, p
}

// ── Phase 3: classification ──

func validateClassification(answers []fixtures.AnswersFixture) *phase {
	p := &phase{name: "Phase 3: Classification determinism"}
	for _, af := range answers {
		a, err := domain.ParseAnswers(af.Answers)
		if err != nil {
			continue // reported in phase 2
		}
		first := domain.ClassifyAnswers(a)
		second := domain.ClassifyAnswers(a)
		if !reflect.DeepEqual(first, second) {
			p.errorf("%s: classification is not deterministic", af.UserID)
		}
		if domain.CoreLabel(first.CoreCode) == first.CoreCode {
			p.errorf("%s: unknown core code %q", af.UserID, first.CoreCode)
		}
		if len(first.SubLabels) > 2 {
			p.errorf("%s: %d sub-labels", af.UserID, len(first.SubLabels))
		}
		seen := map[domain.SubLabel]bool{}
		for _, l := range first.SubLabels {
			if seen[l] {
				p.errorf("%s: duplicate sub-label %s", af.UserID, l)
			}
			seen[l] = true
		}
		if first.SecondaryMeridian != nil && *first.SecondaryMeridian == first.PrimaryMeridian {
			p.errorf("%s: secondary meridian equals primary", af.UserID)
		}
	}
	return p
}

// ── Phase 4: forecasts ──

func validateForecasts(requests []fixtures.RequestFixture, records map[string]domain.ProfileRecord) *phase {
	p := &phase{name: "Phase 4: Forecast ranges"}
	for _, rf := range requests {
		rec, ok := records[rf.Request.UserID]
		if !ok {
			p.errorf("%s: request for %s has no profile", rf.Scenario, rf.Request.UserID)
			continue
		}
		f := domain.BuildForecast(rf.Request, rec, rf.Request.Hourly)
		checkForecast(p, rf.Scenario, f)
	}
	return p
}

func checkForecast(p *phase, scenario string, f domain.Forecast) {
	if f.Degraded {
		p.errorf("%s: forecast is degraded", scenario)
	}
	checkScores(p, scenario, f.Scores)
	if len(f.TopFactors) > 2 {
		p.errorf("%s: %d top factors", scenario, len(f.TopFactors))
	}
	if f.Scores.Wind >= 2 && (len(f.TopFactors) == 0 || f.TopFactors[0] != domain.FactorWind) {
		p.errorf("%s: wind %d is not the first top factor", scenario, f.Scores.Wind)
	}

	a := f.Assessment
	checkRange(p, scenario, "exposure", a.Exposure, 6)
	checkRange(p, scenario, "vulnerability", a.Vulnerability, 6)
	checkRange(p, scenario, "match", a.Match, 4)
	checkRange(p, scenario, "risk", a.Risk, 16)
	if a.Risk != a.Exposure+a.Vulnerability+a.Match {
		p.errorf("%s: risk %d != %d+%d+%d", scenario, a.Risk, a.Exposure, a.Vulnerability, a.Match)
	}
	if f.Reason == "" {
		p.errorf("%s: empty reason", scenario)
	}

	if len(f.Windows) != domain.ScanHours+1 {
		p.errorf("%s: %d windows, want %d", scenario, len(f.Windows), domain.ScanHours+1)
	}
	for _, w := range f.Windows {
		checkScores(p, fmt.Sprintf("%s window %d", scenario, w.Index), w.Scores)
		if w.Watch != (w.Volatility >= 1 || w.State >= 1) {
			p.errorf("%s: window %d watch flag inconsistent", scenario, w.Index)
		}
	}
}

func checkScores(p *phase, where string, s domain.SixinScores) {
	for _, f := range []domain.Factor{domain.FactorWind, domain.FactorCold, domain.FactorHeat, domain.FactorDamp, domain.FactorDry} {
		checkRange(p, where, string(f), s.Get(f), domain.MaxFactorScore)
	}
}

func checkRange(p *phase, where, name string, v, hi int) {
	if v < 0 || v > hi {
		p.errorf("%s: %s=%d outside [0,%d]", where, name, v, hi)
	}
}
