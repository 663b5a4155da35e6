package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Estimate Export API",
        "description": "Exports lead estimates as Xactimate XML, Symbility JSON and a downloadable bundle.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Estimates", "description": "Estimate export and history"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness check (database ping)",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "Metrics exposition"}
                }
            }
        },
        "/api/estimate/export": {
            "post": {
                "tags": ["Estimates"],
                "summary": "Export the latest estimate of a lead",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ExportEstimateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Export created", "schema": {"$ref": "#/definitions/ExportEstimateResponse"}},
                    "400": {"description": "Validation error or invalid scope", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "Organization, lead or scope not found", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/RateLimitBody"}},
                    "500": {"description": "Export failed", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/api/estimate/exports": {
            "get": {
                "tags": ["Estimates"],
                "summary": "List previous exports of a lead",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "leadId", "type": "string", "required": true},
                    {"in": "query", "name": "limit", "type": "integer", "minimum": 1, "maximum": 100},
                    {"in": "query", "name": "offset", "type": "integer", "minimum": 0}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ExportHistoryResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "Organization not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/api/estimate/exports/{id}": {
            "get": {
                "tags": ["Estimates"],
                "summary": "Fetch one stored export",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ExportDetailResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "Export not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/api/estimate/download/{token}": {
            "get": {
                "tags": ["Estimates"],
                "summary": "Download a bundle through a signed link (local storage only)",
                "produces": ["application/zip"],
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "ZIP bundle"},
                    "404": {"description": "Link invalid, expired or bundle missing", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        }
    },
    "definitions": {
        "ExportEstimateRequest": {
            "type": "object",
            "required": ["leadId"],
            "properties": {
                "leadId": {"type": "string"}
            }
        },
        "ExportEstimateResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "id": {"type": "string"},
                "xml": {"type": "string"},
                "symbility": {"type": "object"},
                "summary": {"$ref": "#/definitions/Summary"},
                "downloadZipUrl": {"type": "string"}
            }
        },
        "Summary": {
            "type": "object",
            "properties": {
                "lineItemCount": {"type": "integer"},
                "totalCost": {"type": "number"},
                "byCategory": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "ExportHistoryItem": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "leadId": {"type": "string"},
                "claimId": {"type": "string"},
                "summary": {"$ref": "#/definitions/Summary"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "ExportHistoryResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/ExportHistoryItem"}}
            }
        },
        "ExportDetailResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "leadId": {"type": "string"},
                "claimId": {"type": "string"},
                "xml": {"type": "string"},
                "symbility": {"type": "object"},
                "summary": {"$ref": "#/definitions/Summary"},
                "downloadZipUrl": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "ErrorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "object"}
            }
        },
        "RateLimitBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "limit": {"type": "integer"},
                "remaining": {"type": "integer"},
                "reset": {"type": "integer"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
