package cmd

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/charmbracelet/glamour"
)

const glamourStyle = "dark"

var decisionFuncs = template.FuncMap{
	"money": formatMoney,
	"price": formatPrice,
	"pct":   formatOptionalPct,
	"score": formatScore,
	"date":  func(t time.Time) string { return domain.FormatDate(t) },
	"cell": func(s string) string {
		s = strings.ReplaceAll(s, "|", `\|`)
		return strings.Join(strings.Fields(s), " ")
	},
}

var decisionTemplate = template.Must(template.New("decision").Funcs(decisionFuncs).Parse(`# Decision {{ date .Date }}

| Field | Value |
|---|---|
| Status | {{ .Status }} |
| Model | {{ cell .ModelName }} |
| Run | {{ .RunID }} |
{{- if .MarketRegime }}
| Market regime | {{ cell .MarketRegime }} |
{{- end }}
{{- if .ConfidenceLevel }}
| Confidence | {{ cell .ConfidenceLevel }} |
{{- end }}
| Accuracy | {{ score .AccuracyScore }} |
{{ if .ErrorMessage }}
**Failed:** {{ .ErrorMessage }}
{{ end }}
{{- if .Summary }}
{{ .Summary }}
{{ end }}
## Actions
{{ if .Actions }}
| Action | Symbol | Price | Amount | Realized | Reason |
|---|---|---|---|---|---|
{{- range .Actions }}
| {{ .Action }} | {{ .Symbol }} | {{ price .Price }} | {{ money .CostAmount }} | {{ pct .RealizedPct }} | {{ cell .Reason }} |
{{- end }}
{{ else }}
Hold: no trades executed.
{{ end }}
{{- if .Rejected }}
## Rejected

| Action | Symbol | Reason |
|---|---|---|
{{- range .Rejected }}
| {{ .Action }} | {{ .Symbol }} | {{ cell .Reason }} |
{{- end }}
{{ end }}`))

// decisionMarkdown renders a decision record as a markdown report
func decisionMarkdown(rec domain.DecisionRecord) (string, error) {
	var buf bytes.Buffer
	if err := decisionTemplate.Execute(&buf, rec); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderMarkdown styles markdown for the terminal
func renderMarkdown(md string) (string, error) {
	return glamour.Render(md, glamourStyle)
}
