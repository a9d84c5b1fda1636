package web

import "github.com/moviescript/moviescript-web/internal/submission"

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Model   string `json:"model"`
}

// option is one checkbox on the form.
type option struct {
	Name     string
	Selected bool
}

// formView is the data behind index.html.
type formView struct {
	Title          string
	Overview       string
	CustomKeywords string
	Budget         string
	Genres         []option
	Keywords       []option
	CSRFToken      string
	Errors         []string
}

func newFormView(vocab submission.Vocabulary, f submission.Form, csrf string, errs []string) formView {
	return formView{
		Title:          f.Title,
		Overview:       f.Overview,
		CustomKeywords: f.CustomKeywords,
		Budget:         f.Budget,
		Genres:         options(vocab.Genres, f.Genres),
		Keywords:       options(vocab.Keywords, f.Keywords),
		CSRFToken:      csrf,
		Errors:         errs,
	}
}

func options(names, selected []string) []option {
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	out := make([]option, len(names))
	for i, n := range names {
		out[i] = option{Name: n, Selected: chosen[n]}
	}
	return out
}

func formFromValues(get func(string) string, list func(string) []string) submission.Form {
	return submission.Form{
		Title:          get("title"),
		Overview:       get("overview"),
		Genres:         list("genres"),
		Keywords:       list("keywords"),
		CustomKeywords: get("custom_keywords"),
		Budget:         get("budget"),
	}
}
