package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/civicfix/api/internal/database"
	"github.com/civicfix/api/internal/model"
)

// UserRepository handles user data access
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		CREATE user CONTENT {
			username: $username,
			email: $email,
			hash: $hash,
			created_at: time::now()
		}
	`

	vars := map[string]interface{}{
		"username": user.Username,
		"email":    user.Email,
		"hash":     user.Hash,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: user already exists", database.ErrDuplicate)
		}
		return err
	}

	results := extractQueryResults(result)
	if len(results) == 0 {
		return errors.New("no result returned")
	}

	data, ok := results[0].(map[string]interface{})
	if !ok {
		return errors.New("unexpected result format")
	}

	user.ID = convertSurrealID(data["id"])
	user.CreatedAt = parseTime(data["created_at"])
	return nil
}

// GetByID retrieves a user by ID. Returns (nil, nil) when not found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT * FROM type::record($id)`
	vars := map[string]interface{}{"id": id}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseUserResult(result)
}

// GetByUsername retrieves a user by username. Returns (nil, nil) when not found.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT * FROM user WHERE username = $username LIMIT 1`
	vars := map[string]interface{}{"username": username}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseUserResult(result)
}

// GetByEmail retrieves a user by email. Returns (nil, nil) when not found.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT * FROM user WHERE email = $email LIMIT 1`
	vars := map[string]interface{}{"email": email}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseUserResult(result)
}

func parseUserResult(result interface{}) (*model.User, error) {
	data, err := unwrapRecord(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &model.User{
		ID:        convertSurrealID(data["id"]),
		Username:  getString(data, "username"),
		Email:     getString(data, "email"),
		Hash:      getString(data, "hash"),
		CreatedAt: parseTime(data["created_at"]),
	}, nil
}
