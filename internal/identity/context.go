package identity

import "context"

// Role describes the authorization level of a requester.
type Role string

const (
	RolePatient  Role = "user"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
	// RoleSystem is never carried in a request context; the booking
	// lifecycle controller uses it to mark transitions driven by verified
	// payment captures.
	RoleSystem Role = "system"
)

// Identity is the authenticated requester attached to a request context.
type Identity struct {
	UserID string
	Role   Role
	// ProviderID is set when the user owns a provider profile.
	ProviderID string
}

// IsAdmin reports whether the requester has admin privileges.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// IsSystem reports whether this identity represents the payment-verified
// system actor.
func (id Identity) IsSystem() bool { return id.Role == RoleSystem }

// System returns the identity used for payment-verified transitions.
func System() Identity {
	return Identity{Role: RoleSystem}
}

type ctxKey string

const identityKey ctxKey = "medport.identity"

// WithIdentity stores the requester identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the requester identity if present.
func FromContext(ctx context.Context) (Identity, bool) {
	val := ctx.Value(identityKey)
	if val == nil {
		return Identity{}, false
	}
	id, ok := val.(Identity)
	return id, ok && id.UserID != ""
}
