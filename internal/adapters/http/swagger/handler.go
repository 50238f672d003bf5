// Package swagger serves the embedded OpenAPI document and a ReDoc page for it.
package swagger

import (
	"context"
	"html/template"
	"net/http"
)

// DefaultScriptURL is the ReDoc bundle the docs page loads unless overridden.
const DefaultScriptURL = "https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"

type options struct {
	scriptURL string
}

// Option configures Register.
type Option func(*options)

// WithScriptURL loads ReDoc from url, e.g. a copy hosted next to the
// service. An empty url renders the page without ReDoc, linking the raw
// document only.
func WithScriptURL(url string) Option {
	return func(o *options) { o.scriptURL = url }
}

// Register attaches the API docs routes to mux.
// Routes:
//
//	GET /api-docs      -> ReDoc HTML
//	GET /openapi.yaml  -> embedded OpenAPI document
func Register(_ context.Context, mux *http.ServeMux, opts ...Option) {
	if mux == nil {
		panic("mux is nil")
	}
	o := options{scriptURL: DefaultScriptURL}
	for _, opt := range opts {
		opt(&o)
	}

	mux.HandleFunc("GET /api-docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = docsPage.Execute(w, struct{ ScriptURL string }{o.scriptURL})
	})

	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}

// The link stays visible until ReDoc renders over it, so the document is
// reachable when the bundle cannot be fetched.
var docsPage = template.Must(template.New("docs").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>evalboard API Docs</title>
    <style>body{margin:0;padding:0}#fallback{font-family:sans-serif;padding:1em}</style>
  </head>
  <body>
    <div id="redoc-container"><p id="fallback">API reference: <a href="/openapi.yaml">openapi.yaml</a></p></div>
{{- if .ScriptURL}}
    <script src="{{.ScriptURL}}"></script>
    <script>if (window.Redoc) { Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container')); }</script>
{{- end}}
  </body>
</html>`))
