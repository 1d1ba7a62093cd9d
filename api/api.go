// Package api embeds the OpenAPI description served at /swagger/spec.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
