package swagger

import _ "embed"

// OpenAPI contains the embedded OpenAPI YAML document.
//
//go:embed openapi.yaml
var OpenAPI []byte

// ViewerJS renders the document in the browser without external assets.
//
//go:embed static/viewer.js
var ViewerJS []byte
