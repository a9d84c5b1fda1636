package web

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates static
var assets embed.FS

var pageNames = []string{"index.html", "result.html"}

// Views holds the parsed page templates.
type Views struct {
	set   *pongo2.TemplateSet
	pages map[string]*pongo2.Template
}

// NewViews parses every page from the embedded template tree.
func NewViews() (*Views, error) {
	sub, err := fs.Sub(assets, "templates")
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	v := &Views{
		set:   pongo2.NewSet("moviescript", pongo2.NewFSLoader(sub)),
		pages: make(map[string]*pongo2.Template, len(pageNames)),
	}
	for _, name := range pageNames {
		tpl, err := v.set.FromFile(name)
		if err != nil {
			return nil, fmt.Errorf("load template %q: %w", name, err)
		}
		v.pages[name] = tpl
	}
	return v, nil
}

// Render executes the named page into w with the given status. Nothing is
// written to w if the template fails.
func (v *Views) Render(w http.ResponseWriter, status int, name string, data pongo2.Context) error {
	tpl, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(data, &buf); err != nil {
		return fmt.Errorf("execute template %q: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func staticHandler() http.Handler {
	sub, _ := fs.Sub(assets, "static")
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
