// Package docs registers the OpenAPI document served under /swagger/.
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
        "/api/v1/campaigns": {
            "get": {
                "tags": ["campaigns"],
                "summary": "List the caller's campaigns",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}}
            },
            "post": {
                "tags": ["campaigns"],
                "summary": "Create a DRAFT campaign",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/campaigns/{campaign_id}": {
            "get": {
                "tags": ["campaigns"],
                "summary": "Get a campaign",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "campaign_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            },
            "patch": {
                "tags": ["campaigns"],
                "summary": "Edit a DRAFT campaign",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "campaign_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            },
            "delete": {
                "tags": ["campaigns"],
                "summary": "Delete a DRAFT campaign",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "campaign_id", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/campaigns/{campaign_id}/launch": {
            "post": {
                "tags": ["campaigns"],
                "summary": "Queue a paid DRAFT campaign",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "campaign_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "402": {"description": "Payment Required"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/campaigns/{campaign_id}/pause": {
            "post": {
                "tags": ["campaigns"],
                "summary": "Pause a RUNNING campaign",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "campaign_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/campaigns/{campaign_id}/end": {
            "post": {
                "tags": ["campaigns"],
                "summary": "End a RUNNING or PAUSED campaign",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "campaign_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/billing/checkout": {
            "post": {
                "tags": ["billing"],
                "summary": "Open a checkout session for DRAFT campaigns",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "502": {"description": "Bad Gateway"}}
            }
        },
        "/api/v1/billing/payments": {
            "get": {
                "tags": ["billing"],
                "summary": "List the caller's payments",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/billing/stats": {
            "get": {
                "tags": ["billing"],
                "summary": "Spend summary for the caller",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/billing/payments/{payment_id}/invoice": {
            "get": {
                "tags": ["billing"],
                "summary": "Invoice reference for a PAID payment",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "payment_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/v1/billing/payments/{payment_id}/refund": {
            "post": {
                "tags": ["billing"],
                "summary": "Record a refund (ADMIN)",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "X-User-Role", "in": "header", "required": true},
                    {"type": "string", "name": "payment_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/webhooks/stripe": {
            "post": {
                "tags": ["webhooks"],
                "summary": "Stripe event delivery",
                "parameters": [
                    {"type": "string", "name": "Stripe-Signature", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "500": {"description": "Redeliver"}}
            }
        },
        "/api/v1/accounts": {
            "post": {
                "tags": ["accounts"],
                "summary": "Open the caller's client account",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/v1/google/link": {
            "post": {
                "tags": ["google"],
                "summary": "Invite a Google Ads account under the manager account",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"202": {"description": "Accepted"}, "409": {"description": "Conflict"}, "502": {"description": "Bad Gateway"}}
            }
        },
        "/api/v1/google/link/status": {
            "get": {
                "tags": ["google"],
                "summary": "Stored link status",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/google/link/sync": {
            "post": {
                "tags": ["google"],
                "summary": "Reconcile the link status against Google Ads",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "adreel API",
	Description:      "Campaign lifecycle, payment ledger and ads account linking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
