package stages

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<main>
<h1>{{.Heading}}</h1>
{{.Body}}
</main>
</body>
</html>
`))

type landingData struct {
	Title   string
	Heading string
	Body    template.HTML
}

// writeLandingPage renders the project README into index.html unless the
// packager already produced one.
func (e *Env) writeLandingPage(bs *pipeline.BuildState, siteDir string) error {
	indexPath := filepath.Join(siteDir, "index.html")
	if _, err := os.Stat(indexPath); err == nil {
		return nil
	}

	readme := filepath.Join(bs.CheckoutPath, bs.Config.Project.ReadmePath)
	// #nosec G304 - readme path comes from validated configuration
	source, err := os.ReadFile(readme)
	if err != nil {
		return fmt.Errorf("read landing page source %s: %w", bs.Config.Project.ReadmePath, err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert(source, &body); err != nil {
		return fmt.Errorf("render landing page: %w", err)
	}

	heading := cases.Title(language.English).String(bs.Config.Project.Name)
	var page bytes.Buffer
	err = landingTemplate.Execute(&page, landingData{
		Title:   bs.Config.Site.Title,
		Heading: heading,
		Body:    template.HTML(body.String()), // #nosec G203 - README is trusted project content
	})
	if err != nil {
		return fmt.Errorf("execute landing template: %w", err)
	}

	if err := os.WriteFile(indexPath, page.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write landing page: %w", err)
	}
	return nil
}
