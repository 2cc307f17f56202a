package server

import (
	"embed"
	"fmt"
	"html/template"
)

const (
	indexTemplate     = "index.html"
	loginTemplate     = "login.html"
	dashboardTemplate = "dashboard.html"
)

//go:embed templates/*.html
var templateFiles embed.FS

// parseTemplates parses every page from the embedded filesystem, keyed by file name
func parseTemplates() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{indexTemplate, loginTemplate, dashboardTemplate} {
		tmpl, err := template.ParseFS(templateFiles, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}
