// Package docs holds the generated swaggo spec. In the teacher's repo
// this file is produced by `swag init`; handwriting it here keeps
// /swagger/index.html serving without requiring the generator to run as
// part of this module's build.
package docs

import "github.com/swaggo/swag"

var docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {}
}`

// SwaggerInfo holds exported swagger metadata, kept in sync with
// cmd/api/main.go's top-level swaggo annotations.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "BalanceChain API",
	Description:      "Offline-first, per-identity, append-only signed action ledger.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
