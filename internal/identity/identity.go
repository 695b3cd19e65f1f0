package identity

import "context"

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"

	DefaultLocale = "en"
)

// Profile is the strongly-typed view of an identity-provider user.
// Role and Locale are always populated (defaults applied at the
// boundary); Name and Specialization may be empty.
type Profile struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Locale         string `json:"locale"`
	Specialization string `json:"specialization"`
}

// Directory looks up users in the external identity provider.
type Directory interface {
	GetUser(ctx context.Context, userID string) (Profile, error)
	ListUsersByRole(ctx context.Context, role string) ([]Profile, error)
}

// Normalize fills in the defined defaults for missing metadata fields.
func Normalize(p Profile) Profile {
	if p.Role == "" {
		p.Role = RolePatient
	}
	if p.Locale == "" {
		p.Locale = DefaultLocale
	}
	return p
}
