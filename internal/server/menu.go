package server

import (
	"html/template"
	"io"
	"net/http"
	"net/url"

	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
)

type menuLink struct {
	Label string
	Href  string
}

type menuData struct {
	Commands []menuLink
	Suites   []menuLink
}

var menuTemplate = template.Must(template.New("menu").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Test Runner</title></head>
<body>
<h1>Test Runner</h1>
<h2>Commands</h2>
<ul>
{{- range .Commands}}
<li><a href="{{.Href}}">{{.Label}}</a></li>
{{- end}}
</ul>
<h2>Suites</h2>
<ul>
{{- range .Suites}}
<li><a href="{{.Href}}">{{.Label}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

func actionHref(action string) string {
	return "?action=" + url.QueryEscape(action)
}

func (s *Server) menu(w http.ResponseWriter) {
	data := menuData{
		Commands: []menuLink{
			{Label: "Run all tests", Href: actionHref(runner.CommandAll)},
			{Label: "Set up environment", Href: actionHref(runner.CommandSetup)},
			{Label: "Clean up environment", Href: actionHref(runner.CommandCleanup)},
			{Label: "Help", Href: actionHref(runner.CommandHelp)},
		},
	}
	for _, name := range s.newRunner(io.Discard).Registry().Names() {
		data.Suites = append(data.Suites, menuLink{Label: name, Href: actionHref(name)})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := menuTemplate.Execute(w, data); err != nil {
		s.logger.Error("render menu", "error", err)
	}
}
