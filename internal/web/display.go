package web

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/moviescript/moviescript-web/internal/predictor"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// resultRow is one rendered prediction. Value is HTML-safe.
type resultRow struct {
	Name  string
	Label string
	Value string
}

func resultRows(res predictor.Result) []resultRow {
	fields := res.Fields()
	rows := make([]resultRow, len(fields))
	for i, f := range fields {
		rows[i] = resultRow{
			Name:  f.Name,
			Label: fieldLabel(f.Name),
			Value: formatValue(f.Value),
		}
	}
	return rows
}

// fieldLabel turns predicted_box_office into "Predicted Box Office".
func fieldLabel(name string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(name))
	if len(words) == 0 {
		return name
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "n/a"
	case string:
		return textSanitizer().Sanitize(x)
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case int64:
		return humanize.Comma(x)
	case float64:
		return formatFloat(x)
	}

	if b, err := json.Marshal(v); err == nil {
		return html.EscapeString(string(b))
	}
	return html.EscapeString(fmt.Sprint(v))
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	r := math.Round(f*100) / 100
	if r == math.Trunc(r) && math.Abs(r) < 1e15 {
		return humanize.Comma(int64(r))
	}
	return humanize.CommafWithDigits(r, 2)
}
