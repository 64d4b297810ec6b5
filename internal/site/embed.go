// ABOUTME: Embeds the public site templates and stylesheet
// ABOUTME: Each page template is parsed together with the shared base layout

package site

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageTemplates = []string{
	"home.html",
	"gallery.html",
	"photo.html",
	"page.html",
	"cart.html",
	"order.html",
	"notfound.html",
}

var templateFuncs = template.FuncMap{
	"money": FormatMoney,
	"lineTotal": func(price int64, qty int) int64 {
		return price * int64(qty)
	},
}

func parseTemplates() map[string]*template.Template {
	out := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		out[name] = template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name))
	}
	return out
}
