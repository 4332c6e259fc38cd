package farms

import (
	"github.com/google/uuid"
)

// CreateFarmInput is the payload for registering a producer profile.
type CreateFarmInput struct {
	Name           string   `json:"name" validate:"required,min=1,max=160"`
	Region         string   `json:"region" validate:"required,min=1,max=120"`
	Description    string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	ContactEmail   string   `json:"contact_email" validate:"required,email"`
	ContactPhone   string   `json:"contact_phone,omitempty" validate:"omitempty,max=32"`
	Certifications []string `json:"certifications,omitempty" validate:"omitempty,dive,min=1,max=80"`
}

// UpdateFarmInput carries partial updates to a farm profile.
type UpdateFarmInput struct {
	Name           *string   `json:"name,omitempty" validate:"omitempty,min=1,max=160"`
	Region         *string   `json:"region,omitempty" validate:"omitempty,min=1,max=120"`
	Description    *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	ContactEmail   *string   `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone   *string   `json:"contact_phone,omitempty" validate:"omitempty,max=32"`
	Certifications *[]string `json:"certifications,omitempty" validate:"omitempty,dive,min=1,max=80"`
	IsActive       *bool     `json:"is_active,omitempty"`
}

// FarmDTO is the public representation of a producer.
type FarmDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Region         string    `json:"region"`
	Description    string    `json:"description,omitempty"`
	ContactEmail   string    `json:"contact_email"`
	ContactPhone   string    `json:"contact_phone,omitempty"`
	Certifications []string  `json:"certifications"`
	IsActive       bool      `json:"is_active"`
}
