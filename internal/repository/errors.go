package repository

import "errors"

// Common repository errors
var (
	// ErrProjectNotFound is returned when a project is not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrTaskNotFound is returned when a task is not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrCommentNotFound is returned when a comment is not found
	ErrCommentNotFound = errors.New("comment not found")

	// ErrUserExists is returned when the email is already registered
	ErrUserExists = errors.New("user already exists")
)
