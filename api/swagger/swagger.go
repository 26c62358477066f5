package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Seating API",
        "description": "Seat allocation with a consistency auditor and auto-repair",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Seats", "description": "Seat catalog"},
        {"name": "Seating", "description": "Incremental seat allocation"},
        {"name": "Seating Admin", "description": "Auditing, repair and bulk provisioning"}
    ],
    "paths": {
        "/seats": {
            "get": {
                "tags": ["Seats"],
                "summary": "List seats",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["vacant", "occupied", "unavailable"]},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "available", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Seats"],
                "summary": "Register a seat",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSeatRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate seat number", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seats/{id}": {
            "get": {
                "tags": ["Seats"],
                "summary": "Get a seat",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seats/{id}/active": {
            "patch": {
                "tags": ["Seats"],
                "summary": "Enable or disable a seat",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetSeatActiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/assign": {
            "post": {
                "tags": ["Seating"],
                "summary": "Assign a student to a seat",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignSeatRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "SEAT_UNAVAILABLE, SEAT_ALREADY_ASSIGNED or STUDENT_ALREADY_ASSIGNED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Storage error, retryable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/unassign": {
            "post": {
                "tags": ["Seating"],
                "summary": "Release a student's seat",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UnassignSeatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "ASSIGNMENT_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/assignments": {
            "get": {
                "tags": ["Seating"],
                "summary": "List seat assignments",
                "parameters": [
                    {"name": "seatId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "sortOrder", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/stats": {
            "get": {
                "tags": ["Seating"],
                "summary": "Seat and assignment counts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/seats/{seatId}": {
            "get": {
                "tags": ["Seating"],
                "summary": "Get a seat and its occupant",
                "parameters": [
                    {"name": "seatId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/seats/{seatId}/history": {
            "get": {
                "tags": ["Seating"],
                "summary": "Assignment history for a seat",
                "parameters": [
                    {"name": "seatId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/students/{studentId}": {
            "get": {
                "tags": ["Seating"],
                "summary": "Get a student's active seat",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "ASSIGNMENT_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/students/{studentId}/history": {
            "get": {
                "tags": ["Seating"],
                "summary": "Assignment history for a student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/seating/health": {
            "get": {
                "tags": ["Seating Admin"],
                "summary": "Run a seating consistency check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/seating/health/export": {
            "get": {
                "tags": ["Seating Admin"],
                "summary": "Download a seating consistency report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report file", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/seating/repair": {
            "post": {
                "tags": ["Seating Admin"],
                "summary": "Audit and auto-repair seating state",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Maintenance already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/seating/seats/provision": {
            "post": {
                "tags": ["Seating Admin"],
                "summary": "Create a contiguous range of seats",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProvisionSeatsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "DUPLICATE_SEAT_NUMBER", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/seating/bulk-assign": {
            "post": {
                "tags": ["Seating Admin"],
                "summary": "Pair students with seats in seat-number order",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkAssignRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/seating/initialize": {
            "post": {
                "tags": ["Seating Admin"],
                "summary": "Wipe all assignments and bulk assign",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkAssignRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Destructive operations disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateSeatRequest": {
            "type": "object",
            "required": ["seatNumber"],
            "properties": {
                "seatNumber": {"type": "integer", "minimum": 1, "maximum": 2147483647}
            }
        },
        "SetSeatActiveRequest": {
            "type": "object",
            "required": ["active"],
            "properties": {
                "active": {"type": "boolean"}
            }
        },
        "AssignSeatRequest": {
            "type": "object",
            "required": ["seatId", "studentId"],
            "properties": {
                "seatId": {"type": "string"},
                "studentId": {"type": "string"},
                "assignedBy": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "UnassignSeatRequest": {
            "type": "object",
            "required": ["seatId", "studentId"],
            "properties": {
                "seatId": {"type": "string"},
                "studentId": {"type": "string"},
                "unassignedBy": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "ProvisionSeatsRequest": {
            "type": "object",
            "required": ["startNumber", "count"],
            "properties": {
                "startNumber": {"type": "integer", "minimum": 1, "maximum": 2147483647},
                "count": {"type": "integer"}
            }
        },
        "BulkAssignRequest": {
            "type": "object",
            "required": ["studentIds"],
            "properties": {
                "studentIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
