// Package session implements preemptive single-session login on top of a
// tabular store: the newest login for an identity always wins.
package session

import (
	"context"
	"strings"
	"time"
)

// Header is the fixed layout of the session table.
var Header = []string{"identity", "token", "date", "time", "last_seen"}

const (
	colIdentity = iota
	colToken
	colDate
	colTime
	colLastSeen
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Session is one active login.
type Session struct {
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	// Expiry is zero when sessions never expire.
	Expiry   time.Time `json:"expiry"`
	Identity string    `json:"identity"`
	Token    string    `json:"token"`
}

// Expired reports whether the session has an expiry that lies before now.
func (s Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && now.After(s.Expiry)
}

// NormalizeIdentity trims and lower-cases an identity.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// row renders s as a session table row.
func (s Session) row(loc *time.Location) []string {
	created := s.CreatedAt.In(loc)
	return []string{
		s.Identity,
		s.Token,
		created.Format(dateLayout),
		created.Format(timeLayout),
		s.LastSeen.In(loc).Format(time.RFC3339),
	}
}

// parseRow reads a session table row. Timestamps that fail to parse are left
// zero.
func parseRow(cells []string, loc *time.Location, idle time.Duration) Session {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	s := Session{
		Identity: NormalizeIdentity(cell(colIdentity)),
		Token:    cell(colToken),
	}
	if t, err := time.ParseInLocation(dateLayout+" "+timeLayout, cell(colDate)+" "+cell(colTime), loc); err == nil {
		s.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, cell(colLastSeen)); err == nil {
		s.LastSeen = t.In(loc)
	}
	if idle > 0 {
		base := s.LastSeen
		if base.IsZero() {
			base = s.CreatedAt
		}
		if !base.IsZero() {
			s.Expiry = base.Add(idle)
		}
	}
	return s
}
