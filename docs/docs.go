// Package docs holds the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/signup": {
            "post": {
                "tags": ["Auth"],
                "summary": "Create an account and its profile",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.AuthResponse"}},
                    "400": {"description": "Bad Request"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange credentials for a token",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AuthResponse"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/session": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Auth"],
                "summary": "Current user and profile",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AuthResponse"}}, "401": {"description": "Unauthorized"}}
            }
        },
        "/profiles": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Profiles"],
                "summary": "List profiles, optionally by ids",
                "parameters": [{"type": "string", "description": "comma separated profile ids", "name": "ids", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Profile"}}}}
            }
        },
        "/profiles/me": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["Profiles"],
                "summary": "Update own profile",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.UpdateProfileRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Profile"}}}
            }
        },
        "/projects": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Projects"],
                "summary": "List projects, newest first",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Project"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Projects"],
                "summary": "Create a project",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.CreateProjectRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Project"}}, "400": {"description": "Bad Request"}}
            }
        },
        "/projects/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Projects"],
                "summary": "Get a project",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Project"}}, "404": {"description": "Not Found"}}
            }
        },
        "/projects/{id}/tasks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "List a project's tasks, newest first",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Task"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Create a task",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.CreateTaskRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Task"}}, "422": {"description": "Unknown assignee"}}
            }
        },
        "/tasks/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Get a task",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Task"}}, "404": {"description": "Not Found"}}
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Partially update a task",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.UpdateTaskRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Task"}}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Delete a task and its comments",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}}
            }
        },
        "/tasks/{id}/comments": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Comments"],
                "summary": "List a task's comments, oldest first",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Comment"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Comments"],
                "summary": "Add a comment",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.CreateCommentRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Comment"}}}
            }
        },
        "/comments/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Comments"],
                "summary": "Delete own comment",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}}
            }
        },
        "/realtime": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Realtime"],
                "summary": "Server-Sent Events stream of row changes",
                "produces": ["text/event-stream"],
                "parameters": [
                    {"type": "string", "description": "projects, tasks or comments", "name": "table", "in": "query", "required": true},
                    {"type": "string", "description": "project_id=eq.<uuid> or task_id=eq.<uuid>", "name": "filter", "in": "query"}
                ],
                "responses": {"200": {"description": "event stream"}, "400": {"description": "Invalid channel"}}
            }
        }
    },
    "definitions": {
        "handler.RegisterRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string", "minLength": 6}, "display_name": {"type": "string"}}
        },
        "handler.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.AuthResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "user": {"$ref": "#/definitions/model.User"}, "profile": {"$ref": "#/definitions/model.Profile"}}
        },
        "handler.UpdateProfileRequest": {
            "type": "object",
            "properties": {"display_name": {"type": "string"}, "avatar_url": {"type": "string"}}
        },
        "handler.CreateProjectRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {"name": {"type": "string"}, "description": {"type": "string"}}
        },
        "handler.CreateTaskRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {"title": {"type": "string"}, "description": {"type": "string"}, "status": {"type": "string", "enum": ["todo", "in_progress", "completed"]}, "assigned_to": {"type": "string"}}
        },
        "handler.UpdateTaskRequest": {
            "type": "object",
            "properties": {"title": {"type": "string"}, "description": {"type": "string"}, "status": {"type": "string", "enum": ["todo", "in_progress", "completed"]}, "assigned_to": {"type": "string", "x-nullable": true}}
        },
        "handler.CreateCommentRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {"text": {"type": "string"}}
        },
        "model.User": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "email": {"type": "string"}, "created_at": {"type": "string"}}
        },
        "model.Profile": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "display_name": {"type": "string"}, "avatar_url": {"type": "string"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}
        },
        "model.Project": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "description": {"type": "string"}, "created_by": {"type": "string"}, "created_at": {"type": "string"}}
        },
        "model.Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"}, "project_id": {"type": "string"}, "title": {"type": "string"}, "description": {"type": "string"},
                "status": {"type": "string", "enum": ["todo", "in_progress", "completed"]},
                "assigned_to": {"type": "string", "x-nullable": true}, "created_by": {"type": "string"},
                "created_at": {"type": "string"}, "updated_at": {"type": "string"}
            }
        },
        "model.Comment": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "task_id": {"type": "string"}, "user_id": {"type": "string"}, "text": {"type": "string"}, "created_at": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"description": "Type \"Bearer\" followed by a space and JWT token.", "type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Task Board Gateway API",
	Description:      "Auth, projects, tasks, comments and a change feed for the shared task board.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
