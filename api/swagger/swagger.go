package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Performance Review API",
        "description": "Scheduled skill and task reviews, scoring and the nine-box talent matrix",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Reviews", "description": "Review cycle, forms and submissions"},
        {"name": "Task Reviews", "description": "Goals and reviews of finished tasks"},
        {"name": "Analytics", "description": "Skill analytics and adaptation index"},
        {"name": "NineBox", "description": "Performance and potential matrix"},
        {"name": "Assessments", "description": "Standalone answer scoring"}
    ],
    "paths": {
        "/review/initiate": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Run the review cycle",
                "parameters": [
                    {"in": "body", "name": "payload", "schema": {"$ref": "#/definitions/InitiateCycleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Cycle summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Cycle queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/token/{token}": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Check a review link",
                "parameters": [
                    {"in": "path", "name": "token", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Usable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/form": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Fetch a review form",
                "parameters": [
                    {"in": "query", "name": "token", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Form", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/submit": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Submit review answers",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SubmitReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/notifications": {
            "get": {
                "tags": ["Reviews"],
                "summary": "List review notifications",
                "parameters": [
                    {"in": "query", "name": "recipient_id", "required": true, "type": "string"},
                    {"in": "query", "name": "unread_only", "type": "boolean"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/notifications/{id}/read": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Mark a notification read",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Marked"}
                }
            }
        },
        "/review/overview": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Review calendar of a subject",
                "parameters": [
                    {"in": "query", "name": "subject", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/subjects/sync": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Upsert an employee from the HR system",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/analytics": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Skill analytics of a subject",
                "parameters": [
                    {"in": "query", "name": "subject", "required": true, "type": "string"},
                    {"in": "query", "name": "period", "type": "string"},
                    {"in": "query", "name": "type", "type": "string", "enum": ["all", "hard", "soft"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/adaptation-index": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Adaptation index of a subject",
                "parameters": [
                    {"in": "query", "name": "subject", "required": true, "type": "string"},
                    {"in": "query", "name": "period", "type": "string"},
                    {"in": "query", "name": "type", "type": "string", "enum": ["all", "hard", "soft"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/goals": {
            "post": {
                "tags": ["Task Reviews"],
                "summary": "Create a goal with tasks",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateGoalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/tasks/initiate": {
            "post": {
                "tags": ["Task Reviews"],
                "summary": "Start task reviews",
                "parameters": [
                    {"in": "body", "name": "payload", "schema": {"$ref": "#/definitions/InitiateTaskReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Task review summaries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown task", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/tasks/form": {
            "get": {
                "tags": ["Task Reviews"],
                "summary": "Fetch a task review form",
                "parameters": [
                    {"in": "query", "name": "token", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Form", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Token of another review kind", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/review/tasks/submit": {
            "post": {
                "tags": ["Task Reviews"],
                "summary": "Submit a task review",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SubmitTaskReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analytics/system": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Instrumentation snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/nine-box/matrix": {
            "get": {
                "tags": ["NineBox"],
                "summary": "Nine-box talent matrix",
                "parameters": [
                    {"in": "query", "name": "scope", "type": "string"},
                    {"in": "query", "name": "ttlMinutes", "type": "integer"},
                    {"in": "query", "name": "refresh", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/nine-box/export": {
            "get": {
                "tags": ["NineBox"],
                "summary": "Download the nine-box matrix",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "scope", "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/assessments/evaluate": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Score assessment answers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "InitiateCycleRequest": {
            "type": "object",
            "properties": {
                "as_of": {"type": "string", "format": "date"},
                "async": {"type": "boolean"}
            }
        },
        "AnswerInput": {
            "type": "object",
            "required": ["question_id"],
            "properties": {
                "question_id": {"type": "string"},
                "grade": {"type": "integer"},
                "answer": {"type": "object"}
            }
        },
        "SubmitReviewRequest": {
            "type": "object",
            "required": ["token"],
            "properties": {
                "token": {"type": "string"},
                "save_mode": {"type": "string", "enum": ["final", "partial"]},
                "answers": {"type": "array", "items": {"$ref": "#/definitions/AnswerInput"}}
            }
        },
        "CreateTaskInput": {
            "type": "object",
            "required": ["title", "start_date", "end_date"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"},
                "priority": {"type": "integer"}
            }
        },
        "CreateGoalRequest": {
            "type": "object",
            "required": ["owner_id", "title", "tasks"],
            "properties": {
                "owner_id": {"type": "string", "format": "uuid"},
                "creator_id": {"type": "string", "format": "uuid"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "deadline": {"type": "string", "format": "date"},
                "tasks": {"type": "array", "items": {"$ref": "#/definitions/CreateTaskInput"}}
            }
        },
        "InitiateTaskReviewRequest": {
            "type": "object",
            "properties": {
                "task_id": {"type": "string", "format": "uuid"},
                "as_of": {"type": "string", "format": "date"}
            }
        },
        "SubmitTaskReviewRequest": {
            "type": "object",
            "required": ["token"],
            "properties": {
                "token": {"type": "string"},
                "answers": {"type": "array", "items": {"$ref": "#/definitions/AnswerInput"}}
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
