package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Authentication Errors =====
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username already taken")
	ErrEmailExists        = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTooShort   = errors.New("username must be at least 3 characters")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrSessionNotFound    = errors.New("session not found")
)

// ===== Problem Errors =====
var (
	ErrProblemNotFound      = errors.New("problem not found")
	ErrTitleRequired        = errors.New("title is required")
	ErrDescriptionRequired  = errors.New("description is required")
	ErrCategoryRequired     = errors.New("category is required")
	ErrNotProblemOwner      = errors.New("not the owner of this problem")
	ErrInvalidStatus        = errors.New("invalid status value")
	ErrCommentTextRequired  = errors.New("comment text is required")
	ErrSolutionTextRequired = errors.New("solution description is required")
	ErrNoProblems           = errors.New("no problems found")
	ErrProblemIDsRequired   = errors.New("at least one problem id is required")
)
