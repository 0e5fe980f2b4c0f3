package shared

import "github.com/golang-jwt/jwt/v5"

// shared types across the application
// AuthClaims is what the upstream auth service signs into access tokens,
// the API and the CLI both decode it

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type AuthClaims struct {
	UserID   string `json:"user_id"`            // user identifier(UUID)
	UserName string `json:"username,omitempty"` // display name
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
