//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// apiDoc is a hand-maintained OpenAPI 2 document for the routes in NewMux.
const apiDoc = `{
  "swagger": "2.0",
  "info": {"title": "{{.Title}}", "description": "{{escape .Description}}", "version": "{{.Version}}"},
  "basePath": "{{.BasePath}}",
  "schemes": {{ marshal .Schemes }},
  "paths": {
    "/generate": {"post": {
      "summary": "Answer a query as an NDJSON stream of session snapshots",
      "consumes": ["application/json"], "produces": ["application/x-ndjson"],
      "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateRequest"}}],
      "responses": {"200": {"description": "NDJSON lines; the last carries done=true", "schema": {"$ref": "#/definitions/StreamLine"}},
        "400": {"description": "invalid request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
        "429": {"description": "too busy", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}},
    "/sessions": {"post": {
      "summary": "Start a session in the background",
      "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateRequest"}}],
      "responses": {"202": {"description": "created", "schema": {"$ref": "#/definitions/SessionCreated"}},
        "429": {"description": "too busy", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}},
    "/sessions/{id}": {"get": {
      "summary": "Session snapshot",
      "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
      "responses": {"200": {"description": "snapshot", "schema": {"$ref": "#/definitions/SessionStatus"}},
        "404": {"description": "unknown session", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}},
    "/sessions/{id}/stream": {"get": {
      "summary": "NDJSON stream of an existing session",
      "produces": ["application/x-ndjson"],
      "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
      "responses": {"200": {"description": "NDJSON lines", "schema": {"$ref": "#/definitions/StreamLine"}}}}},
    "/sessions/{id}/interrupt": {"post": {
      "summary": "Interrupt a session",
      "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
      "responses": {"204": {"description": "interrupted or already finished"}}}},
    "/models": {"get": {"summary": "Local models", "responses": {"200": {"description": "models", "schema": {"$ref": "#/definitions/ModelsResponse"}}}}},
    "/status": {"get": {"summary": "Server status", "responses": {"200": {"description": "status", "schema": {"$ref": "#/definitions/StatusResponse"}}}}}
  },
  "definitions": {
    "Message": {"type": "object", "properties": {"role": {"type": "string"}, "content": {"type": "string"}}},
    "GenerateRequest": {"type": "object", "properties": {
      "query": {"type": "string"}, "provider": {"type": "string"}, "results_to_consider": {"type": "integer"},
      "messages": {"type": "array", "items": {"$ref": "#/definitions/Message"}}}},
    "SessionCreated": {"type": "object", "properties": {"id": {"type": "string"}}},
    "SessionStatus": {"type": "object", "properties": {
      "id": {"type": "string"}, "provider": {"type": "string"}, "state": {"type": "string"},
      "response": {"type": "string"}, "progress": {"type": "number"}, "error": {"type": "string"}, "created_unix": {"type": "integer"}}},
    "StreamLine": {"type": "object", "properties": {
      "state": {"type": "string"}, "text": {"type": "string"}, "progress": {"type": "number"},
      "error": {"type": "string"}, "done": {"type": "boolean"}}},
    "Model": {"type": "object", "properties": {"id": {"type": "string"}, "path": {"type": "string"}}},
    "ModelsResponse": {"type": "object", "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/Model"}}}},
    "StatusResponse": {"type": "object"},
    "ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}}
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "answerd API",
	Description:      "Search-grounded answer generation with local and remote providers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  apiDoc,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
