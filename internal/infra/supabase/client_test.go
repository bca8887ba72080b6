package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/infra/observability"
	"github.com/haoweiyu/crm-bff-go/internal/infra/resilience"
	"github.com/haoweiyu/crm-bff-go/internal/infra/supabase"
	"github.com/haoweiyu/crm-bff-go/internal/port"

	"go.uber.org/zap"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// newTestClient spins up a fake gateway and a client pointed at it.
// handler decides the response; every request is captured for
// assertions.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*supabase.Client, *[]capturedRequest, func()) {
	t.Helper()

	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, 0)
		if r.Body != nil {
			buf := make([]byte, 1<<16)
			n, _ := r.Body.Read(buf)
			body = buf[:n]
		}
		captured = append(captured, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler(w, r)
	}))

	client := supabase.NewClient(
		srv.Client(),
		srv.URL,
		"anon-key",
		"service-key",
		resilience.NewCircuitBreaker("test"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		observability.NewMetrics(),
		zap.NewNop(),
	)
	return client, &captured, srv.Close
}

func TestListCustomers_QueryAndWindow(t *testing.T) {
	client, captured, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "0-1/57")
		w.Write([]byte(`[{"id":"c1","company":"Acme"},{"id":"c2","company":"Globex"}]`))
	})
	defer cleanup()

	entered := true
	rows, total, err := client.ListCustomers(context.Background(), port.CustomerQuery{
		Filter: domain.CustomerFilter{
			Keyword:   "acme",
			Country:   "DE",
			Status:    domain.StatusNegotiating,
			IsEntered: &entered,
		},
		ScopeOwnerID: "user-9",
		From:         0,
		To:           19,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if total != 57 {
		t.Errorf("expected total 57 from Content-Range, got %d", total)
	}

	req := (*captured)[0]
	if req.Path != "/rest/v1/customers" {
		t.Errorf("unexpected path %s", req.Path)
	}
	if got := req.Header.Get("Range"); got != "0-19" {
		t.Errorf("expected Range '0-19', got '%s'", got)
	}
	if got := req.Header.Get("Prefer"); got != "count=exact" {
		t.Errorf("expected Prefer 'count=exact', got '%s'", got)
	}

	q := req.Query
	if got := q.Get("owner_id"); got != "eq.user-9" {
		t.Errorf("expected owner scope 'eq.user-9', got '%s'", got)
	}
	if got := q.Get("country"); got != "eq.DE" {
		t.Errorf("expected country 'eq.DE', got '%s'", got)
	}
	if got := q.Get("status"); got != "eq.negotiating" {
		t.Errorf("expected status 'eq.negotiating', got '%s'", got)
	}
	if got := q.Get("is_entered"); got != "eq.true" {
		t.Errorf("expected is_entered 'eq.true', got '%s'", got)
	}
	or := q.Get("or")
	if !strings.Contains(or, "company.ilike.*acme*") || !strings.Contains(or, "code.ilike.*acme*") {
		t.Errorf("keyword disjunction incomplete: %s", or)
	}
	if got := q.Get("order"); got != "created_at.desc" {
		t.Errorf("expected order 'created_at.desc', got '%s'", got)
	}
}

func TestListCustomers_SalesScopeBeatsOwnerFilter(t *testing.T) {
	client, captured, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "*/0")
		w.Write([]byte(`[]`))
	})
	defer cleanup()

	_, _, err := client.ListCustomers(context.Background(), port.CustomerQuery{
		Filter:       domain.CustomerFilter{OwnerID: "somebody-else"},
		ScopeOwnerID: "user-9",
		From:         0,
		To:           19,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Both predicates land in the query; PostgREST conjoins eq filters
	// on the same column, so the scope can never be widened by the
	// caller's filter.
	vals := (*captured)[0].Query["owner_id"]
	if len(vals) != 2 {
		t.Fatalf("expected both owner_id predicates, got %v", vals)
	}
	if vals[0] != "eq.user-9" {
		t.Errorf("expected scope predicate first, got %v", vals)
	}
}

func TestGetCustomer_Absent(t *testing.T) {
	client, _, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	defer cleanup()

	cust, err := client.GetCustomer(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error for absent row, got %v", err)
	}
	if cust != nil {
		t.Fatalf("expected nil customer, got %+v", cust)
	}
}

func TestCreateCustomer_PostsRepresentation(t *testing.T) {
	client, captured, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"c1","company":"Acme","owner":{"id":"u1","email":"a@b.c"}}]`))
	})
	defer cleanup()

	created, err := client.CreateCustomer(context.Background(), domain.Customer{
		Code:        "CUST-001",
		Company:     "Acme",
		Contact:     "Jo",
		Country:     "DE",
		InquiryDate: "2026-01-15",
		Status:      domain.StatusPotential,
		Source:      domain.SourceWebsite,
		OwnerID:     "u1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.ID != "c1" {
		t.Errorf("expected id from representation, got '%s'", created.ID)
	}
	if created.Owner == nil || created.Owner.Email != "a@b.c" {
		t.Errorf("expected owner expansion, got %+v", created.Owner)
	}

	req := (*captured)[0]
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if got := req.Header.Get("Prefer"); got != "return=representation" {
		t.Errorf("expected return=representation, got '%s'", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	if payload["id"] == "" || payload["id"] == nil {
		t.Error("expected a generated id in the insert payload")
	}
	if _, present := payload["email"]; present {
		t.Error("empty optional fields must be omitted from the payload")
	}
}

func TestListOrders_KeywordAndDates(t *testing.T) {
	client, captured, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "0-0/1")
		w.Write([]byte(`[{"id":"o1","order_no":"ORD-1"}]`))
	})
	defer cleanup()

	_, total, err := client.ListOrders(context.Background(), domain.OrderFilter{
		Keyword:  "widget",
		Status:   domain.OrderConfirmed,
		DateFrom: "2026-01-01",
		DateTo:   "2026-06-30",
	}, 0, 9)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if total != 1 {
		t.Errorf("expected total 1, got %d", total)
	}

	q := (*captured)[0].Query
	or := q.Get("or")
	if !strings.Contains(or, "order_no.ilike.*widget*") || !strings.Contains(or, "product.ilike.*widget*") {
		t.Errorf("keyword disjunction incomplete: %s", or)
	}
	if got := q["create_date"]; len(got) != 2 || got[0] != "gte.2026-01-01" || got[1] != "lte.2026-06-30" {
		t.Errorf("unexpected date predicates: %v", got)
	}
	if got := q.Get("order"); got != "create_date.desc" {
		t.Errorf("expected order 'create_date.desc', got '%s'", got)
	}
}

func TestListPendingReminders_Predicates(t *testing.T) {
	client, captured, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"f1","remind_at":"2026-08-30"}]`))
	})
	defer cleanup()

	rows, err := client.ListPendingReminders(context.Background(), "2026-09-01")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(rows))
	}

	got := (*captured)[0].Query["remind_at"]
	if len(got) != 2 || got[0] != "lte.2026-09-01" || got[1] != "not.is.null" {
		t.Errorf("unexpected remind_at predicates: %v", got)
	}
}

func TestGetDashboardStats_RPCAndDefaults(t *testing.T) {
	client, captured, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_customers":42,"total_profit":1234.5}`))
	})
	defer cleanup()

	stats, err := client.GetDashboardStats(context.Background(), "u1", "sales")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.TotalCustomers != 42 {
		t.Errorf("expected 42 customers, got %d", stats.TotalCustomers)
	}
	if stats.ByCountry == nil || stats.ByStatus == nil || stats.BySource == nil {
		t.Error("breakdown maps must never be nil")
	}

	req := (*captured)[0]
	if req.Path != "/rest/v1/rpc/get_dashboard_stats" {
		t.Errorf("unexpected path %s", req.Path)
	}
	var payload map[string]any
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		t.Fatalf("invalid rpc body: %v", err)
	}
	if payload["user_id_param"] != "u1" || payload["user_role_param"] != "sales" {
		t.Errorf("unexpected rpc arguments: %v", payload)
	}
}

func TestSignIn_SessionAndEvent(t *testing.T) {
	client, captured, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"access_token":"tok-abc",
			"refresh_token":"ref-abc",
			"expires_in":3600,
			"user":{"id":"u1","email":"jo@example.com","user_metadata":{"name":"Jo"}}
		}`))
	})
	defer cleanup()

	sess, err := client.SignInWithPassword(context.Background(), "jo@example.com", "secret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.AccessToken != "tok-abc" {
		t.Errorf("unexpected access token '%s'", sess.AccessToken)
	}
	if sess.Identity.ID != "u1" || sess.Identity.Name != "Jo" {
		t.Errorf("unexpected identity %+v", sess.Identity)
	}

	req := (*captured)[0]
	if req.Path != "/auth/v1/token" {
		t.Errorf("unexpected path %s", req.Path)
	}
	if got := req.Query.Get("grant_type"); got != "password" {
		t.Errorf("expected grant_type password, got '%s'", got)
	}

	select {
	case change := <-client.SessionChanges():
		if change.Event != domain.AuthSignedIn {
			t.Errorf("expected SIGNED_IN event, got %s", change.Event)
		}
		if change.Session == nil || change.Session.AccessToken != "tok-abc" {
			t.Error("expected the new session on the event")
		}
	default:
		t.Fatal("expected a buffered auth event")
	}

	got, err := client.GetSession(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil || got.AccessToken != "tok-abc" {
		t.Error("expected GetSession to return the live session")
	}
}

func TestSignIn_BadCredentials(t *testing.T) {
	client, _, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_description":"Invalid login credentials"}`))
	})
	defer cleanup()

	_, err := client.SignInWithPassword(context.Background(), "jo@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %T", err)
	}
	if !strings.Contains(unauthorized.Message, "Invalid login credentials") {
		t.Errorf("expected gateway message, got '%s'", unauthorized.Message)
	}
}

func TestSignOut_ClearsSessionEvenOnGatewayError(t *testing.T) {
	step := 0
	client, _, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		step++
		if step == 1 {
			w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","expires_in":3600,"user":{"id":"u1","email":"jo@example.com"}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"msg":"boom"}`))
	})
	defer cleanup()

	if _, err := client.SignInWithPassword(context.Background(), "jo@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	drain(client.SessionChanges())

	if err := client.SignOut(context.Background()); err == nil {
		t.Fatal("expected gateway error to surface")
	}

	sess, err := client.GetSession(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess != nil {
		t.Error("local session must be cleared regardless of gateway outcome")
	}

	select {
	case change := <-client.SessionChanges():
		if change.Event != domain.AuthSignedOut {
			t.Errorf("expected SIGNED_OUT event, got %s", change.Event)
		}
	default:
		t.Fatal("expected a SIGNED_OUT event")
	}
}

func TestGetSession_RefreshOnExpiry(t *testing.T) {
	calls := 0
	client, captured, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		token := "tok-1"
		expires := 0 // first grant expires immediately
		if calls > 1 {
			token = "tok-2"
			expires = 3600
		}
		w.Write([]byte(`{"access_token":"` + token + `","refresh_token":"ref","expires_in":` +
			strconv.Itoa(expires) + `,"user":{"id":"u1","email":"jo@example.com"}}`))
	})
	defer cleanup()

	if _, err := client.SignInWithPassword(context.Background(), "jo@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	drain(client.SessionChanges())

	sess, err := client.GetSession(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.AccessToken != "tok-2" {
		t.Errorf("expected refreshed token, got '%s'", sess.AccessToken)
	}

	refresh := (*captured)[1]
	if got := refresh.Query.Get("grant_type"); got != "refresh_token" {
		t.Errorf("expected grant_type refresh_token, got '%s'", got)
	}

	select {
	case change := <-client.SessionChanges():
		if change.Event != domain.AuthTokenRefreshed {
			t.Errorf("expected TOKEN_REFRESHED event, got %s", change.Event)
		}
	default:
		t.Fatal("expected a TOKEN_REFRESHED event")
	}
}

func TestSignUp_ConfirmationRequired(t *testing.T) {
	client, _, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// No tokens: the deployment requires email confirmation.
		w.Write([]byte(`{"id":"u2","email":"new@example.com","user_metadata":{"name":"New"}}`))
	})
	defer cleanup()

	identity, sess, err := client.SignUp(context.Background(), "new@example.com", "secret", "New")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if identity == nil || identity.ID != "u2" {
		t.Fatalf("expected identity, got %+v", identity)
	}
	if sess != nil {
		t.Error("expected no session before confirmation")
	}
}

// --- helpers ---

func drain(ch <-chan domain.AuthChange) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

