package sharrock

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
)

// DocsOption configures the page served by ServeDocs.
type DocsOption func(*docsPage)

// docsPage is the API reference page: an OpenAPI viewer over the registry's
// document plus a link to the service directory.
type docsPage struct {
	Title   string
	SpecURL string
}

// WithDocsTitle sets the page title.
func WithDocsTitle(title string) DocsOption {
	return func(p *docsPage) { p.Title = title }
}

// WithDocsSpecURL points the viewer at another OpenAPI document.
func WithDocsSpecURL(url string) DocsOption {
	return func(p *docsPage) { p.SpecURL = url }
}

// ServeDocs serves the API reference page at path. The viewer loads
// /openapi.json unless WithDocsSpecURL says otherwise.
func (r *Router) ServeDocs(path string, opts ...DocsOption) {
	page := docsPage{Title: r.title, SpecURL: "/openapi." + SpecFormats()[0]}
	for _, opt := range opts {
		opt(&page)
	}

	r.mux.HandleFunc("GET "+path, func(w http.ResponseWriter, req *http.Request) {
		if err := renderPage(w, page); err != nil {
			r.fail(w, req, Key{}, err)
		}
	})
}

var pages = template.Must(template.New("pages").Parse(pagesHTML))

// renderPage writes the human-readable page for a describe or directory
// document. The page is rendered fully before anything is written so a
// template failure still produces a clean error response.
func renderPage(w http.ResponseWriter, doc any) error {
	var name string
	switch doc.(type) {
	case Description:
		name = "descriptor"
	case ResourceDescription:
		name = "resource"
	case Directory:
		name = "directory"
	case docsPage:
		name = "docs"
	default:
		return fmt.Errorf("no page for %T", doc)
	}

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, doc); err != nil {
		return fmt.Errorf("render %s page: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	w.Write(buf.Bytes())
	return nil
}

const pagesHTML = `
{{define "head"}}<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.}}</title>
</head>
<body>{{end}}

{{define "docs"}}<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
  <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
</head>
<body>
  <nav><a href="/dir/">Service directory</a> | <a href="{{.SpecURL}}">OpenAPI document</a></nav>
  <elements-api apiDescriptionUrl="{{.SpecURL}}" router="hash" layout="sidebar"></elements-api>
</body>
</html>{{end}}

{{define "foot"}}
</body>
</html>{{end}}

{{define "params"}}{{if .}}
<table>
  <tr><th>Name</th><th>Type</th><th>Required</th><th>Description</th></tr>
  {{range .}}<tr><td>{{.Name}}</td><td>{{.Type}}</td><td>{{if .Required}}yes{{else}}no{{end}}</td><td>{{.Description}}</td></tr>
  {{end}}
</table>{{else}}
<p>No parameters.</p>{{end}}{{end}}

{{define "descriptor-body"}}
<h2>{{.ServiceName}} <small>{{.Version}}</small></h2>
{{if .Deprecated}}<p class="deprecated">Deprecated: {{.Deprecated}}</p>{{end}}
{{if .Docs}}<p>{{.Docs}}</p>{{end}}
<p>Formats: {{range $i, $f := .Formats}}{{if $i}}, {{end}}{{$f}}{{end}}</p>
{{if .Permissions}}<p>Permissions: {{range $i, $p := .Permissions}}{{if $i}}, {{end}}{{$p}}{{end}}</p>{{end}}
{{template "params" .Params}}{{end}}

{{define "descriptor"}}{{template "head" .ServiceName}}
{{template "descriptor-body" .}}
{{template "foot"}}{{end}}

{{define "resource"}}{{template "head" .Name}}
<h1>{{.Name}} <small>{{.Version}}</small></h1>
{{if .Deprecated}}<p class="deprecated">Deprecated: {{.Deprecated}}</p>{{end}}
{{if .Docs}}<p>{{.Docs}}</p>{{end}}
{{range $verb, $action := .Actions}}
<section id="{{$verb}}">
<h3>{{$verb}}</h3>
{{template "descriptor-body" $action}}
</section>{{end}}
{{template "foot"}}{{end}}

{{define "directory"}}{{template "head" "Service directory"}}
<h1>Service directory</h1>
{{range .Apps}}{{$app := .App}}
<h2>{{$app}}</h2>
{{range .Versions}}{{$version := .Version}}
<h3>{{$version}}</h3>
{{if .Resources}}<h4>Resources</h4>
<ul>{{range .Resources}}
  <li><a href="/describe/{{$app}}/{{$version}}/{{.Slug}}.html">{{.Name}}</a>{{if .Deprecated}} (deprecated){{end}}</li>{{end}}
</ul>{{end}}
{{if .Functions}}<h4>Functions</h4>
<ul>{{range .Functions}}
  <li><a href="/describe/{{$app}}/{{$version}}/{{.Slug}}.html">{{.ServiceName}}</a>{{if .Deprecated}} (deprecated){{end}}</li>{{end}}
</ul>{{end}}
{{end}}{{else}}
<p>No services registered.</p>{{end}}
{{template "foot"}}{{end}}
`
