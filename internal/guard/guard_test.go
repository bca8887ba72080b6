package guard_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/guard"
)

type stubSession struct {
	authenticated bool
	admin         bool
	loading       atomic.Bool
}

func (s *stubSession) IsAuthenticated() bool { return s.authenticated }
func (s *stubSession) IsAdmin() bool         { return s.admin }
func (s *stubSession) Loading() bool         { return s.loading.Load() }

func TestDecide_Table(t *testing.T) {
	cases := []struct {
		name          string
		route         guard.Route
		authenticated bool
		admin         bool
		want          guard.Action
		wantReturnTo  string
	}{
		{
			name:         "protected route, no session",
			route:        guard.Route{Path: "/customers"},
			want:         guard.RedirectLogin,
			wantReturnTo: "/customers",
		},
		{
			name:          "protected route, signed in",
			route:         guard.Route{Path: "/customers"},
			authenticated: true,
			want:          guard.Proceed,
		},
		{
			name:          "admin route as sales",
			route:         guard.Route{Path: "/users", AdminOnly: true},
			authenticated: true,
			want:          guard.RedirectHome,
		},
		{
			name:          "admin route as admin",
			route:         guard.Route{Path: "/users", AdminOnly: true},
			authenticated: true,
			admin:         true,
			want:          guard.Proceed,
		},
		{
			name:  "public route, no session",
			route: guard.Route{Path: "/register", Public: true},
			want:  guard.Proceed,
		},
		{
			name:          "login page while signed in",
			route:         guard.Route{Path: guard.LoginPath, Public: true},
			authenticated: true,
			want:          guard.RedirectHome,
		},
		{
			name:  "login page while signed out",
			route: guard.Route{Path: guard.LoginPath, Public: true},
			want:  guard.Proceed,
		},
		{
			// Auth check outranks the admin check.
			name:         "admin route, no session",
			route:        guard.Route{Path: "/users", AdminOnly: true},
			want:         guard.RedirectLogin,
			wantReturnTo: "/users",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &stubSession{authenticated: tc.authenticated, admin: tc.admin}
			got := guard.Decide(tc.route, sess)
			if got.Action != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got.Action)
			}
			if got.ReturnTo != tc.wantReturnTo {
				t.Errorf("expected return-to '%s', got '%s'", tc.wantReturnTo, got.ReturnTo)
			}
		})
	}
}

func TestEvaluate_WaitsForSessionRestore(t *testing.T) {
	sess := &stubSession{authenticated: true}
	sess.loading.Store(true)

	go func() {
		time.Sleep(150 * time.Millisecond)
		sess.loading.Store(false)
	}()

	start := time.Now()
	got := guard.Evaluate(context.Background(), guard.Route{Path: "/customers"}, sess)
	if got.Action != guard.Proceed {
		t.Errorf("expected proceed after restore, got %s", got.Action)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("evaluate waited far longer than the restore took")
	}
}

func TestEvaluate_ContextCancellationShortCircuits(t *testing.T) {
	sess := &stubSession{}
	sess.loading.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := guard.Evaluate(ctx, guard.Route{Path: "/customers"}, sess)
	if time.Since(start) > time.Second {
		t.Error("cancellation must cut the wait short")
	}
	if got.Action != guard.RedirectLogin {
		t.Errorf("expected redirect-login for the unrestored session, got %s", got.Action)
	}
}
