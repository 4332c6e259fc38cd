package auth

import (
	"github.com/google/uuid"

	"github.com/harvestfield/farmlink-backend/pkg/enums"
)

// RegisterRequest captures the self-service signup payload.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=120"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role        string `json:"role" validate:"required,oneof=buyer farmer"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest rotates a session using the expired access token plus the
// refresh token issued with it.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UserSummary is the account snapshot returned with a token pair.
type UserSummary struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	Role        enums.UserRole `json:"role"`
	FarmID      *uuid.UUID     `json:"farm_id,omitempty"`
}

// AuthResponse is the token pair handed to a client after register, login,
// or refresh.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserSummary `json:"user"`
}
