// Package seed provisions the privileged SUPER_ADMIN account.
package seed

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/marketdb/internal/config"
	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/query"
	"github.com/roach88/marketdb/internal/record"
)

// RoleSuperAdmin is the role granted to the seeded account.
const RoleSuperAdmin = "SUPER_ADMIN"

// HashCost is the bcrypt work factor for seeded passwords.
const HashCost = 10

// ErrNoEmail is returned when the configured admin email is empty.
var ErrNoEmail = errors.New("admin email is empty")

// EnsureAdmin creates the admin user unless a user with admin.Email already
// exists. It reports whether a record was created. An existing account is
// returned untouched.
func EnsureAdmin(ctx context.Context, users data.Model, admin config.Admin, clock data.Clock) (record.Record, bool, error) {
	if admin.Email == "" {
		return nil, false, ErrNoEmail
	}

	existing, err := users.FindUnique(ctx, query.Eq("email", admin.Email))
	if err != nil {
		return nil, false, fmt.Errorf("look up admin: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	fields, err := adminFields(admin, clock)
	if err != nil {
		return nil, false, err
	}
	fields["email"] = admin.Email

	created, err := users.Create(ctx, fields)
	if err != nil {
		return nil, false, fmt.Errorf("create admin: %w", err)
	}
	return created, true, nil
}

// UpsertAdmin creates the admin user or resets an existing one's name,
// password, role, approval and verification time.
func UpsertAdmin(ctx context.Context, users data.Model, admin config.Admin, clock data.Clock) (record.Record, error) {
	if admin.Email == "" {
		return nil, ErrNoEmail
	}

	update, err := adminFields(admin, clock)
	if err != nil {
		return nil, err
	}
	create := make(map[string]any, len(update)+1)
	for k, v := range update {
		create[k] = v
	}
	create["email"] = admin.Email

	user, err := users.Upsert(ctx, query.Eq("email", admin.Email), create, update)
	if err != nil {
		return nil, fmt.Errorf("upsert admin: %w", err)
	}
	return user, nil
}

func adminFields(admin config.Admin, clock data.Clock) (map[string]any, error) {
	if clock == nil {
		clock = data.SystemClock{}
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(admin.Password), HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return map[string]any{
		"name":           admin.Name,
		"hashedPassword": string(hashed),
		"role":           RoleSuperAdmin,
		"isApproved":     true,
		"emailVerified":  clock.Now(),
	}, nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(user record.Record, password string) bool {
	hashed, ok := user.String("hashedPassword")
	if !ok || hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
