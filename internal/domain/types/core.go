package types

import (
	"strings"

	"github.com/pkg/errors"
)

// UserType is the account category of a community member.
type UserType string

const (
	UserStudent UserType = "student"
	UserClub    UserType = "club"
	UserAdmin   UserType = "admin"
)

// Valid reports whether t is one of the known account categories.
func (t UserType) Valid() bool {
	switch t {
	case UserStudent, UserClub, UserAdmin:
		return true
	}
	return false
}

// Identity names one member of the community.
type Identity struct {
	Type UserType `json:"type"`
	ID   string   `json:"id"`
}

// String renders the identity as "type:id".
func (i Identity) String() string { return string(i.Type) + ":" + i.ID }

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i.Type == "" && i.ID == "" }

// StorageName is the stable name of this identity's StoredKeyRecord.
func (i Identity) StorageName() string {
	return StoredKeyPrefix + string(i.Type) + "_" + i.ID
}

// ParseIdentity parses the "type:id" form produced by Identity.String.
func ParseIdentity(s string) (Identity, error) {
	t, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Identity{}, errors.Errorf("identity %q: want type:id", s)
	}
	ident := Identity{Type: UserType(t), ID: id}
	if !ident.Type.Valid() {
		return Identity{}, errors.Errorf("identity %q: unknown user type %q", s, t)
	}
	return ident, nil
}

// GroupID identifies a chat group.
type GroupID string

// String returns the string form of the group identifier.
func (g GroupID) String() string { return string(g) }
