package model

import "fmt"

// ClientRole represents the RBAC role assigned to an API client.
type ClientRole string

const (
	RoleAdmin   ClientRole = "admin"
	RoleAnalyst ClientRole = "analyst"
	RoleViewer  ClientRole = "viewer"
)

// ParseClientRole validates a role name.
func ParseClientRole(s string) (ClientRole, error) {
	r := ClientRole(s)
	if RoleRank(r) == 0 {
		return "", fmt.Errorf("unknown client role %q", s)
	}
	return r, nil
}

// RoleRank returns the numeric rank of a role (higher = more privileges).
// Only relative ordering matters; RoleAtLeast uses >= comparison.
func RoleRank(r ClientRole) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleAnalyst:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// RoleAtLeast returns true if role r has at least the privileges of minRole.
func RoleAtLeast(r, minRole ClientRole) bool {
	return RoleRank(r) >= RoleRank(minRole)
}

// APIClient is a configured caller allowed to exchange an API key for a token.
type APIClient struct {
	ClientID   string
	Role       ClientRole
	APIKeyHash string
}

// ValidateTag checks that a tag conforms to the allowed format.
// Tags must start with a lowercase letter and contain only lowercase
// alphanumeric characters, hyphens, and underscores.
func ValidateTag(tag string) error {
	if len(tag) == 0 {
		return fmt.Errorf("tag must not be empty")
	}
	if len(tag) > 64 {
		return fmt.Errorf("tag must be at most 64 characters")
	}
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		if i == 0 {
			if c < 'a' || c > 'z' {
				return fmt.Errorf("tag must start with a lowercase letter, got %q", c)
			}
			continue
		}
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' && c != '_' {
			return fmt.Errorf("tag contains invalid character at position %d: %q", i, c)
		}
	}
	return nil
}

// ValidateClientID checks that a client ID conforms to the allowed format.
// Client IDs must be 1-255 ASCII characters: alphanumeric, dots, hyphens,
// underscores, and @ signs.
func ValidateClientID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("client_id is required")
	}
	if len(id) > 255 {
		return fmt.Errorf("client_id must be at most 255 characters")
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') &&
			c != '.' && c != '-' && c != '_' && c != '@' {
			return fmt.Errorf("client_id contains invalid character at position %d: %q", i, c)
		}
	}
	return nil
}
