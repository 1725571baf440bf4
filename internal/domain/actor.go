package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleCounter  Role = "COUNTER"
	RoleAdmin    Role = "ADMIN"
	RoleSystem   Role = "SYSTEM"
)

var roleSynonyms = map[string]Role{
	"CUSTOMER":    RoleCustomer,
	"USER":        RoleCustomer,
	"COUNTER":     RoleCounter,
	"STAFF":       RoleCounter,
	"CASHIER":     RoleCounter,
	"ADMIN":       RoleAdmin,
	"OWNER":       RoleAdmin,
	"SUPER_ADMIN": RoleAdmin,
	"SYSTEM":      RoleSystem,
}

func ParseRole(raw string) (Role, error) {
	if r, ok := roleSynonyms[normalizeToken(raw)]; ok {
		return r, nil
	}
	return "", NewValidationError("role", fmt.Sprintf("unknown role %q", raw))
}

// IsStaff reports whether the role acts on behalf of the operator rather than a customer.
func (r Role) IsStaff() bool {
	return r == RoleCounter || r == RoleAdmin || r == RoleSystem
}

// Actor is the opaque identity supplied by the auth layer; it is recorded, never authenticated here.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%s", strings.ToLower(string(a.Role)), a.ID)
}

func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return NewValidationError("actor", "id is required")
	}
	if _, ok := roleSynonyms[string(a.Role)]; !ok {
		return NewValidationError("actor", "role is required")
	}
	return nil
}

var SystemActor = Actor{ID: "system", Role: RoleSystem}

func normalizeToken(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
