package types

import (
	"fmt"
	"strings"
)

// Address is the delivery destination captured at checkout.
type Address struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	Prefecture string `json:"prefecture" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Phone      string `json:"phone,omitempty"`
}

// Validate reports the first missing required component.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return fmt.Errorf("address line1 is required")
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("address city is required")
	case strings.TrimSpace(a.Prefecture) == "":
		return fmt.Errorf("address prefecture is required")
	case strings.TrimSpace(a.PostalCode) == "":
		return fmt.Errorf("address postal code is required")
	}
	return nil
}

// String renders a single-line representation for logs and labels.
func (a Address) String() string {
	parts := []string{a.PostalCode, a.Prefecture, a.City, a.Line1}
	if a.Line2 != "" {
		parts = append(parts, a.Line2)
	}
	return strings.Join(parts, " ")
}
