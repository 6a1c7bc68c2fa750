// Package docs registers the OpenAPI document served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
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
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "List served tables",
                "operationId": "listTables",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TablesResponse"}}
                }
            }
        },
        "/{table}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "List a page of rows",
                "operationId": "listRows",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "table", "in": "path", "required": true},
                    {"type": "integer", "default": 1, "description": "Page (1-based)", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Rows per page (max 500)", "name": "page_size", "in": "query"},
                    {"type": "string", "description": "Weak ETag from a previous response", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListResponse"}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "Insert a row",
                "operationId": "createRow",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "table", "in": "path", "required": true},
                    {"type": "string", "description": "Caller identity", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Retry-safe insert key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Column values", "name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/{table}/search": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "Free-text search over a table",
                "operationId": "searchRows",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "table", "in": "path", "required": true},
                    {"type": "string", "description": "Query", "name": "q", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SearchResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/{table}/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "Fetch one row",
                "operationId": "getRow",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "table", "in": "path", "required": true},
                    {"type": "string", "description": "Row id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "Update columns of a row",
                "operationId": "updateRow",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "table", "in": "path", "required": true},
                    {"type": "string", "description": "Row id", "name": "id", "in": "path", "required": true},
                    {"description": "Columns to change", "name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["Tables"],
                "summary": "Delete a row",
                "operationId": "deleteRow",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "table", "in": "path", "required": true},
                    {"type": "string", "description": "Row id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"}
            }
        },
        "handlers.ListResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"type": "object"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.SearchResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.TablesResponse": {
            "type": "object",
            "properties": {
                "tables": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/rest/v1",
	Schemes:          []string{},
	Title:            "Miele back-office API",
	Description:      "Generic table API for clients, PER/DCOMP filings, change requests, the activity log and settings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
