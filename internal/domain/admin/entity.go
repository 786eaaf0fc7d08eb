// internal/domain/admin/entity.go
package admin

import "time"

type Admin struct {
	ID           int64      `json:"id" db:"id"`
	FullName     string     `json:"full_name" db:"full_name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Roles        []string   `json:"roles" db:"roles"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLogin    *time.Time `json:"last_login" db:"last_login"`
}

// LoginRequest represents admin login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginResponse represents successful login data
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Admin     Info      `json:"admin"`
}

// Info represents public admin information
type Info struct {
	ID        int64      `json:"id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Roles     []string   `json:"roles"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
}
