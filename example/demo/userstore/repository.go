// Package userstore is a small Postgres-backed repository whose operations
// are instrumented through the weaving engine. It shows the intended usage
// pattern: describe each callable once, bind a directive, and expose the
// wrapped form.
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/otelweave/otel-instrument-go/instrument"
)

// ErrUserNotFound is returned when a lookup matches no user.
var ErrUserNotFound = errors.New("user not found")

// User is one row of the users table.
type User struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
}

const createTableDDL = `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL
	)`

// UserStore exposes the instrumented repository operations. Each field is the
// wrapped form of the corresponding private method; calling it opens a span,
// records the bound attributes, and closes the span when the call returns.
type UserStore struct {
	db *sqlx.DB

	CreateUser func(ctx context.Context, username, email string) (User, error)
	GetUser    func(ctx context.Context, userID string) (User, error)
	DeleteUser func(ctx context.Context, userID string) error
}

// NewUserStore builds the store and weaves its operations. Binding happens
// once here; every directive or signature mistake surfaces immediately, not
// on the first call.
func NewUserStore(ctx context.Context, weaver *instrument.Weaver, db *sqlx.DB) (*UserStore, error) {
	if _, err := db.ExecContext(ctx, createTableDDL); err != nil {
		return nil, fmt.Errorf("create users table: %w", err)
	}

	store := &UserStore{db: db}

	createPlan, err := bindOperation(
		`skip(email), ret, err, fields(store = "postgres")`,
		instrument.DescribeCallable("create_user").
			WithContextParam("ctx").
			WithParam("username").
			WithParam("email").
			ReturningError().
			Finalize(),
	)
	if err != nil {
		return nil, err
	}
	store.CreateUser = instrument.Wrap2(weaver, createPlan, store.createUser)

	getPlan, err := bindOperation(
		`ret, err, fields(store = "postgres")`,
		instrument.DescribeCallable("get_user").
			WithContextParam("ctx").
			WithParam("userID").
			ReturningError().
			Finalize(),
	)
	if err != nil {
		return nil, err
	}
	store.GetUser = instrument.Wrap1(weaver, getPlan, store.getUser)

	deletePlan, err := bindOperation(
		`err, fields(store = "postgres")`,
		instrument.DescribeCallable("delete_user").
			WithContextParam("ctx").
			WithParam("userID").
			ReturningError().
			Finalize(),
	)
	if err != nil {
		return nil, err
	}
	store.DeleteUser = instrument.WrapErr1(weaver, deletePlan, store.deleteUser)

	return store, nil
}

func bindOperation(directive string, sig instrument.Signature) (*instrument.BindingPlan, error) {
	d, err := instrument.ParseDirective(directive)
	if err != nil {
		return nil, fmt.Errorf("parse directive for %s: %w", sig.Name(), err)
	}

	plan, err := instrument.Bind(d, sig)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", sig.Name(), err)
	}

	return plan, nil
}

func (s *UserStore) createUser(ctx context.Context, username, email string) (User, error) {
	user := User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    email,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email) VALUES ($1, $2, $3)`,
		user.ID, user.Username, user.Email)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (s *UserStore) getUser(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, username, email FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

func (s *UserStore) deleteUser(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}
