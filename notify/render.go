package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var funcs = template.FuncMap{"join": strings.Join}

var (
	hitsTmpl = template.Must(template.New("hits").Funcs(funcs).Parse(
		`<p>Encontrei no <a href="{{.URL}}">{{.Source}}</a>{{with .EditionLabel}} de {{.}}{{end}} os termos: <b>{{join .Hits ", "}}</b>.</p>` +
			`{{if .Snippets}}<pre>{{join .Snippets "\n---\n"}}</pre>{{end}}`))

	groupTmpl = template.Must(template.New("group").Funcs(funcs).Parse(
		`<p>Grupo <b>{{.GroupName}}</b>: encontrei no <a href="{{.URL}}">{{.Source}}</a>{{with .EditionLabel}} de {{.}}{{end}} os termos <b>{{join .Hits ", "}}</b>.</p>` +
			`<p>Termos monitorados pelo grupo: {{join .GroupTerms ", "}}</p>` +
			`{{if .Snippets}}<pre>{{join .Snippets "\n---\n"}}</pre>{{end}}`))

	emptyTmpl = template.Must(template.New("empty").Parse(
		`<p>Nada encontrado no <a href="{{.URL}}">{{.Source}}</a>{{with .EditionLabel}} de {{.}}{{end}}.</p>`))
)

// Rendered is the per-transport text of an alert.
type Rendered struct {
	Subject string
	HTML    string
	Chat    string
	Params  map[string]string
}

func render(tmpl *template.Template, data any) (string, error) {
	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}

func params(a Alert) map[string]string {
	p := map[string]string{"Source": a.Source, "Url": a.URL}
	if a.EditionLabel != "" {
		p["Edition"] = a.EditionLabel
	}
	return p
}

// RenderHits renders the global alert for a run with hits.
func RenderHits(a Alert) (Rendered, error) {
	html, err := render(hitsTmpl, a)
	if err != nil {
		return Rendered{}, err
	}
	hits := strings.Join(a.Hits, ", ")
	return Rendered{
		Subject: fmt.Sprintf("%s: encontrei %s", a.Source, hits),
		HTML:    html,
		Chat:    fmt.Sprintf("%s ✅ %s\n%s", a.Source, hits, a.URL),
		Params:  params(a),
	}, nil
}

// RenderGroup renders a group-scoped alert.
func RenderGroup(g GroupAlert) (Rendered, error) {
	html, err := render(groupTmpl, g)
	if err != nil {
		return Rendered{}, err
	}
	p := params(g.Alert)
	p["Group"] = g.GroupName
	hits := strings.Join(g.Hits, ", ")
	return Rendered{
		Subject: fmt.Sprintf("[%s] %s: encontrei %s", g.GroupName, g.Source, hits),
		HTML:    html,
		Chat:    fmt.Sprintf("[%s] %s ✅ %s\n%s", g.GroupName, g.Source, hits, g.URL),
		Params:  p,
	}, nil
}

// RenderEmpty renders the optional no-hit alert.
func RenderEmpty(a Alert) (Rendered, error) {
	html, err := render(emptyTmpl, a)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{
		Subject: fmt.Sprintf("%s: nenhum termo encontrado", a.Source),
		HTML:    html,
		Chat:    fmt.Sprintf("%s ⭕ nada hoje\n%s", a.Source, a.URL),
		Params:  params(a),
	}, nil
}
