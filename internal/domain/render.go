package domain

import (
	"strings"
	"text/template"
)

var reasonTemplate = template.Must(template.New("reason").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(
	`Today looks {{.Level}} for your {{.Core}} constitution.` +
		`{{if .Factors}} Main drivers: {{join .Factors ", "}}.{{end}}` +
		`{{if .Tendencies}} Watch for times when {{join .Tendencies " and "}}.{{end}}` +
		`{{if .Chips}} ({{join .Chips "; "}}){{end}}` +
		`{{if .WatchHours}} Hours to watch: {{join .WatchHours ", "}}.{{end}}`,
))

type reasonData struct {
	Level      string
	Core       string
	Factors    []string
	Tendencies []string
	Chips      []string
	WatchHours []string
}

// RenderReason builds the short explanation shown next to a forecast. It
// reads the forecast and profile only.
func RenderReason(f Forecast, p ConstitutionProfile) string {
	data := reasonData{
		Level: LevelLabel(f.Assessment.Level),
		Core:  strings.ToLower(CoreLabel(p.CoreCode)),
		Chips: f.Assessment.Chips,
	}
	for _, factor := range f.TopFactors {
		data.Factors = append(data.Factors, FactorLabel(factor))
	}
	for _, l := range p.SubLabels {
		data.Tendencies = append(data.Tendencies, SubLabelText(l))
	}
	for _, w := range f.Windows {
		if w.Volatility >= 2 {
			data.WatchHours = append(data.WatchHours, w.Time.UTC().Format("15:04"))
		}
	}

	var b strings.Builder
	if err := reasonTemplate.Execute(&b, data); err != nil {
		return "Today looks " + data.Level + "."
	}
	return b.String()
}
