package graph

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a node collection.
type Kind string

const (
	KindUser      Kind = "users"
	KindGroup     Kind = "groups"
	KindWorkspace Kind = "workspaces"
	KindObject    Kind = "objects"
)

// EdgeKind identifies an edge collection.
type EdgeKind string

const (
	EdgeMemberOf  EdgeKind = "memberOf"
	EdgeHasPerm   EdgeKind = "hasPerm"
	EdgeContains  EdgeKind = "contains"
	EdgeUpdatedTo EdgeKind = "updatedTo"
)

// Perm is a named permission. Permissions are a closed enumeration rather
// than free-form strings so that a typo cannot silently grant or deny.
type Perm string

const (
	// PermCanView grants read access to a workspace and its objects.
	PermCanView Perm = "canView"
	// PermCanEdit grants write access; it implies view wherever both are
	// accepted.
	PermCanEdit Perm = "canEdit"
	// PermSysadmin grants global administrative access.
	PermSysadmin Perm = "sysadmin"
)

// Valid reports whether p is a known permission name.
func (p Perm) Valid() bool {
	switch p {
	case PermCanView, PermCanEdit, PermSysadmin:
		return true
	}
	return false
}

// ContainsPerm reports whether any requested permission appears in held.
// Matching is per-element set intersection.
func ContainsPerm(held []Perm, requested []Perm) bool {
	for _, r := range requested {
		for _, h := range held {
			if h == r {
				return true
			}
		}
	}
	return false
}

// User is a principal. Perms holds global permission names the user carries
// unconditionally, independent of any grant edge.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Perms        []Perm    `json:"perms"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Group grants its Perms to every transitive member.
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Perms []Perm `json:"perms"`
}

// Workspace is a container for objects. Name and IsPublic are the only
// mutable fields.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
}

// Object is an immutable versioned resource. Version counts the updatedTo
// chain back to the version-0 ancestor.
type Object struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Edge connects two nodes. Perm is set only on hasPerm edges.
type Edge struct {
	ID   string   `json:"id"`
	Kind EdgeKind `json:"kind"`
	From string   `json:"from"`
	To   string   `json:"to"`
	Perm Perm     `json:"perm,omitempty"`
}

// NewID mints a node identifier for the given collection.
func NewID(kind Kind) string {
	return string(kind) + "/" + uuid.NewString()
}

// JoinID builds a node identifier from a collection and a bare key. Keys that
// already carry the collection prefix pass through unchanged, so handlers can
// accept either form.
func JoinID(kind Kind, key string) string {
	if strings.HasPrefix(key, string(kind)+"/") {
		return key
	}
	return string(kind) + "/" + key
}

// KeyOf extracts the bare key from a node identifier.
func KeyOf(id string) string {
	_, key, ok := strings.Cut(id, "/")
	if !ok {
		return id
	}
	return key
}

// KindOf extracts the collection from a node identifier, or "" if the
// identifier is malformed.
func KindOf(id string) Kind {
	k, _, ok := strings.Cut(id, "/")
	if !ok {
		return ""
	}
	return Kind(k)
}
