// Package swagger serves the OpenAPI document of the kiosk API.
package swagger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/knadh/koanf/parsers/yaml"
)

// ErrDocument is returned when the embedded OpenAPI document cannot be
// converted.
var ErrDocument = errors.New("openapi document invalid")

// Register attaches the API docs routes to mux. Everything is embedded so the
// docs render on a kiosk without internet access.
// Routes:
//
//	GET /api-docs            -> HTML shell
//	GET /api-docs/viewer.js  -> Embedded viewer script
//	GET /openapi.yaml        -> Embedded OpenAPI document
//	GET /openapi.json        -> Same document as JSON, read by the viewer
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	doc, docErr := DocumentJSON()

	mux.HandleFunc("GET /api-docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})

	mux.HandleFunc("GET /api-docs/viewer.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write(ViewerJS)
	})

	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})

	mux.HandleFunc("GET /openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		if docErr != nil {
			http.Error(w, docErr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(doc)
	})
}

// DocumentJSON converts the embedded YAML document to JSON.
func DocumentJSON() ([]byte, error) {
	m, err := yaml.Parser().Unmarshal(OpenAPI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocument, err)
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocument, err)
	}
	return out, nil
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Facegate Kiosk API</title>
    <style>
      body{margin:0;padding:1.5rem;font-family:sans-serif;color:#222}
      .op{border-left:4px solid #888;margin:1rem 0;padding:.25rem 1rem;background:#f7f7f7}
      .op.get{border-color:#2a7ae2}.op.post{border-color:#2e9d4f}.op.delete{border-color:#c9302c}
      .method{font-weight:bold;margin-right:.75rem}
    </style>
  </head>
  <body>
    <main id="api-docs">Loading...</main>
    <script src="/api-docs/viewer.js"></script>
  </body>
</html>`
