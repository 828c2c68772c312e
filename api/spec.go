// Package api holds the OpenAPI description of the HTTP surface.
package api

import _ "embed"

// OpenAPISpec is the YAML document served at /docs and used for request validation
//
//go:embed openapi.yaml
var OpenAPISpec []byte
