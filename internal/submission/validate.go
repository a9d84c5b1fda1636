// Package submission turns raw movie metadata from the form into a
// validated model request and runs it through the prediction invoker.
package submission

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/moviescript/moviescript-web/internal/predictor"
)

const (
	MinTitleLen    = 3
	MinOverviewLen = 80
	MinBudget      = 1e5
	MaxBudget      = 1e10
)

const (
	MsgTitleShort    = "Title must be at least 3 characters."
	MsgOverviewShort = "Overview must contain at least 80 characters."
	MsgNoGenre       = "Please select at least one genre."
	MsgBudgetInvalid = "Invalid numeric budget value."
	MsgBudgetRange   = "Budget must be between $100k and $10 billion."
	MsgNoKeyword     = "Please enter at least one keyword."
)

// Form holds the raw submitted fields.
type Form struct {
	Title          string
	Overview       string
	Genres         []string
	Keywords       []string
	CustomKeywords string
	Budget         string
}

// Input is a validated submission.
type Input struct {
	Title    string
	Overview string
	Genres   []string
	Keywords []string
	Budget   float64
}

// Request flattens the input into the model's call shape.
func (in Input) Request() predictor.Request {
	return predictor.Request{
		Title:    in.Title,
		Overview: in.Overview,
		Genres:   strings.Join(in.Genres, " "),
		Keywords: strings.Join(in.Keywords, " "),
		Budget:   in.Budget,
	}
}

// Errors is the ordered list of validation messages for one submission.
type Errors []string

func (e Errors) Error() string {
	return "invalid submission: " + strings.Join(e, "; ")
}

// Validate checks every field and returns either a complete Input or all
// of the messages that apply, in field order.
func Validate(f Form) (Input, error) {
	in := Input{
		Title:    strings.TrimSpace(f.Title),
		Overview: strings.TrimSpace(f.Overview),
		Genres:   nonBlank(f.Genres),
		Keywords: MergeKeywords(f.Keywords, f.CustomKeywords),
	}

	var errs Errors
	if utf8.RuneCountInString(in.Title) < MinTitleLen {
		errs = append(errs, MsgTitleShort)
	}
	if utf8.RuneCountInString(in.Overview) < MinOverviewLen {
		errs = append(errs, MsgOverviewShort)
	}
	if len(in.Genres) == 0 {
		errs = append(errs, MsgNoGenre)
	}

	budget, err := ParseBudget(f.Budget)
	switch {
	case err != nil:
		errs = append(errs, MsgBudgetInvalid)
	case !(budget >= MinBudget && budget <= MaxBudget): // NaN fails the range, not the parse
		errs = append(errs, MsgBudgetRange)
	default:
		in.Budget = budget
	}

	if len(in.Keywords) == 0 {
		errs = append(errs, MsgNoKeyword)
	}

	if len(errs) > 0 {
		return Input{}, errs
	}
	return in, nil
}

// ParseBudget reads a decimal amount that may use ',' as a thousands separator.
func ParseBudget(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	return strconv.ParseFloat(s, 64)
}

// MergeKeywords appends the whitespace-separated custom tokens to the
// selected keywords. Order is kept and duplicates are not removed.
func MergeKeywords(selected []string, custom string) []string {
	out := nonBlank(selected)
	return append(out, strings.Fields(custom)...)
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
