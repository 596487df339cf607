package export

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var markdownTemplate = template.Must(
	template.New("board.md.tmpl").Funcs(template.FuncMap{
		"join": strings.Join,
		"formatDate": func(t time.Time) string {
			return t.UTC().Format("Jan 2, 2006 15:04 MST")
		},
	}).ParseFS(templateFS, "templates/board.md.tmpl"),
)

func renderMarkdown(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
