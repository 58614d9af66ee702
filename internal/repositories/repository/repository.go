// Package repository holds the static metadata shared by every repository:
// table name, entity type identity, scoping and behavioral flags.
package repository

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/session"
)

// Meta describes one entity type.
type Meta struct {
	TableName    string
	EntityTypeId string
	EntityName   string

	// HasCompanyScope and HasUserScope partition sync bookkeeping by the
	// current company and user.
	HasCompanyScope bool
	HasUserScope    bool

	// IsCached keeps a full in-memory snapshot of the table after the first
	// read until ClearCache is called.
	IsCached bool
	// HasEntityState enables dirty tracking and patch logging.
	HasEntityState bool
	// HasDependents makes deletes resolve each row and cascade first.
	HasDependents bool
}

// Metadata returns m; embedding Meta gives a repository its metadata.
func (m Meta) Metadata() Meta { return m }

// Repository is what the registry knows about a repository.
type Repository interface {
	Metadata() Meta
	// Clear deletes every row of the table and drops any cache.
	Clear(ctx context.Context) error
	ClearCache()
}

// Scope is the (company, user) partition of a type's bookkeeping.
type Scope struct {
	CompanyID string
	UserID    string
}

// ResolveScope reads the partition from sess, touching the session only for
// the dimensions m is scoped by.
func ResolveScope(sess session.Session, m Meta) (Scope, error) {
	var s Scope
	if m.HasCompanyScope {
		u, err := sess.RequiredCurrentUser()
		if err != nil {
			return Scope{}, err
		}
		s.CompanyID = u.CompanyID
	}
	if m.HasUserScope {
		id, err := sess.RequiredCurrentUserID()
		if err != nil {
			return Scope{}, err
		}
		s.UserID = id
	}
	return s, nil
}

// Clock returns the current time; repositories take one for tests.
type Clock func() time.Time

// Now returns c() or time.Now when c is nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

// NanoTime converts an optional time into a nullable unix-nano column value.
func NanoTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

// FromNano converts a nullable unix-nano column value back to a time.
func FromNano(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(0, *v).UTC()
	return &t
}
