// Package guard decides whether a navigation may proceed. The decision
// is a pure function of the target route's declared requirements and
// the current session; it never mutates session state.
package guard

import (
	"context"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/session"
)

// LoginPath is the route unauthenticated users are sent to.
const LoginPath = "/login"

// HomePath is the default landing route.
const HomePath = "/"

// Route describes a navigation target. Every route requires
// authentication unless it declares itself public.
type Route struct {
	Path      string
	Public    bool
	AdminOnly bool
}

// Action is the guard's verdict.
type Action int

const (
	Proceed Action = iota
	RedirectLogin
	RedirectHome
)

func (a Action) String() string {
	switch a {
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	default:
		return "proceed"
	}
}

// Decision carries the verdict and, for login redirects, the path to
// return to after signing in.
type Decision struct {
	Action   Action
	ReturnTo string
}

// sessionView is the slice of session state the guard reads.
type sessionView interface {
	IsAuthenticated() bool
	IsAdmin() bool
	Loading() bool
}

var _ sessionView = (*session.Manager)(nil)

// Decide applies the decision table, first match wins:
// a protected route with no session redirects to login, an admin route
// without the admin role falls back home, the login page bounces
// authenticated users home, everything else proceeds.
func Decide(route Route, sess sessionView) Decision {
	authenticated := sess.IsAuthenticated()

	if !route.Public && !authenticated {
		return Decision{Action: RedirectLogin, ReturnTo: route.Path}
	}
	if route.AdminOnly && !sess.IsAdmin() {
		return Decision{Action: RedirectHome}
	}
	if route.Path == LoginPath && authenticated {
		return Decision{Action: RedirectHome}
	}
	return Decision{Action: Proceed}
}

const (
	pollInterval = 100 * time.Millisecond
	pollAttempts = 30
)

// Evaluate waits for session restore to settle, bounded at three
// seconds, then decides. A session still loading after the bound is
// treated as whatever state it is in at that moment.
func Evaluate(ctx context.Context, route Route, sess sessionView) Decision {
	for attempt := 0; attempt < pollAttempts && sess.Loading(); attempt++ {
		select {
		case <-ctx.Done():
			return Decide(route, sess)
		case <-time.After(pollInterval):
		}
	}
	return Decide(route, sess)
}
