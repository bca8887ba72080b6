package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ============================================================
// AuthGateway implementation — GoTrue endpoints
// ============================================================

// gotrueUser is the auth-service user payload.
type gotrueUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name string `json:"name"`
	} `json:"user_metadata"`
}

// gotrueSession is the token grant / signup response payload.
type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         *gotrueUser `json:"user"`
}

// gotrueError is GoTrue's error body; the field name varies by version.
type gotrueError struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (e *gotrueError) text() string {
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	if e.Message != "" {
		return e.Message
	}
	return "authentication failed"
}

// GetSession returns the current session, refreshing it through the
// gateway when the access token has expired. (nil, nil) when no user
// is signed in.
func (c *Client) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	c.mu.Lock()
	cur := c.session
	c.mu.Unlock()

	if cur == nil {
		return nil, nil
	}
	if !cur.Expired(time.Now()) {
		return cur, nil
	}

	refreshed, err := c.refreshSession(ctx, cur.RefreshToken)
	if err != nil {
		return nil, err
	}
	c.setSession(refreshed, domain.AuthTokenRefreshed)
	return refreshed, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignInWithPassword")
	defer span.End()

	sess, err := c.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	c.setSession(sess, domain.AuthSignedIn)
	return sess, nil
}

// SignUp registers a new identity with the display name as metadata.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*domain.AuthIdentity, *domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	payload := map[string]any{
		"email":    email,
		"password": password,
	}
	if name != "" {
		payload["data"] = map[string]string{"name": name}
	}

	body, err := c.doAuthPost(ctx, "signup", payload, "")
	if err != nil {
		return nil, nil, err
	}

	var raw gotrueSession
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode signup response: %w", err)
	}

	// Some deployments require email confirmation: the response then
	// carries the user but no tokens.
	var userPayload gotrueUser
	if raw.User != nil {
		userPayload = *raw.User
	} else if err := json.Unmarshal(body, &userPayload); err != nil {
		return nil, nil, fmt.Errorf("decode signup user: %w", err)
	}

	identity := &domain.AuthIdentity{
		ID:    userPayload.ID,
		Email: userPayload.Email,
		Name:  userPayload.UserMetadata.Name,
	}

	if raw.AccessToken == "" {
		return identity, nil, nil
	}

	sess := c.toSession(&raw)
	c.setSession(sess, domain.AuthSignedIn)
	return identity, sess, nil
}

// SignOut invalidates the remote session. The local session is dropped
// regardless of the gateway outcome.
func (c *Client) SignOut(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	c.mu.Lock()
	cur := c.session
	c.mu.Unlock()

	var err error
	if cur != nil {
		_, err = c.doAuthPost(ctx, "logout", nil, cur.AccessToken)
	}

	c.setSession(nil, domain.AuthSignedOut)
	return err
}

// SessionChanges returns the auth transition channel. Events are
// dropped, not blocked on, when the consumer lags.
func (c *Client) SessionChanges() <-chan domain.AuthChange {
	return c.events
}

// ------------------------------------------------------------

func (c *Client) tokenGrant(ctx context.Context, grantType string, payload map[string]string) (*domain.AuthSession, error) {
	body, err := c.doAuthPost(ctx, "token?grant_type="+grantType, payload, "")
	if err != nil {
		return nil, err
	}

	var raw gotrueSession
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if raw.AccessToken == "" {
		return nil, &domain.ErrUnauthorized{Message: "no access token in grant response"}
	}
	return c.toSession(&raw), nil
}

func (c *Client) refreshSession(ctx context.Context, refreshToken string) (*domain.AuthSession, error) {
	return c.tokenGrant(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// toSession maps a grant response into a domain session. When the
// response omits the user object, identity is recovered from the JWT
// claims (sub, email) without signature verification — the token was
// just issued by the gateway itself.
func (c *Client) toSession(raw *gotrueSession) *domain.AuthSession {
	sess := &domain.AuthSession{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(raw.ExpiresIn) * time.Second),
	}

	if raw.User != nil {
		sess.Identity = domain.AuthIdentity{
			ID:    raw.User.ID,
			Email: raw.User.Email,
			Name:  raw.User.UserMetadata.Name,
		}
		return sess
	}

	var claims jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw.AccessToken, &claims); err == nil {
		if sub, err := claims.GetSubject(); err == nil {
			sess.Identity.ID = sub
		}
		if email, ok := claims["email"].(string); ok {
			sess.Identity.Email = email
		}
	}
	return sess
}

// setSession swaps the stored session and emits the transition.
func (c *Client) setSession(sess *domain.AuthSession, event domain.AuthEvent) {
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	c.metrics.IncrSessionEvent(string(event))

	select {
	case c.events <- domain.AuthChange{Event: event, Session: sess}:
	default:
		c.logger.Warn("supabase: auth event dropped, consumer lagging",
			zap.String("event", string(event)),
		)
	}
}

// doAuthPost posts to a GoTrue endpoint. bearer overrides the apikey
// bearer (needed for logout, which is scoped to the user token).
func (c *Client) doAuthPost(ctx context.Context, path string, payload any, bearer string) ([]byte, error) {
	u := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)

	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordGatewayDuration("AUTH "+path, time.Since(start))
	if err != nil {
		c.metrics.IncrGatewayError("AUTH " + path)
		c.logger.Error("supabase: auth request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.IncrGatewayError("AUTH " + path)
		var ge gotrueError
		_ = json.Unmarshal(body, &ge)
		c.logger.Warn("supabase: auth non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &domain.ErrUnauthorized{Message: ge.text()}
	}

	return body, nil
}
