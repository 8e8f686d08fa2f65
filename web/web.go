// Package web embeds the HTML templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"strconv"

	"github.com/dukerupert/worktracker/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the static asset tree rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var funcs = template.FuncMap{
	"points": func(p *int) string {
		if p == nil {
			return "-"
		}
		return strconv.Itoa(*p)
	},
	"taskTypes":    model.AllTaskTypes,
	"taskStatuses": model.AllTaskStatuses,
	"dateInput": func(d model.Date) string {
		return d.String()
	},
	"oooOptions": func() []int { return []int{0, 1, 2, 3, 4, 5} },
}

// ParseTemplates parses every embedded template. It panics on a bad template
// so a broken build fails at startup.
func ParseTemplates() *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
