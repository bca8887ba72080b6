package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/haoweiyu/crm-bff-go/internal/guard"
	"github.com/haoweiyu/crm-bff-go/internal/session"

	"go.uber.org/zap"
)

// ============================================================
// 1. Auth & session
// ============================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func authLoginHandler(sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		user, err := sessions.SignIn(ctx, req.Email, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func authRegisterHandler(sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/register")
		defer span.End()

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		user, err := sessions.SignUp(ctx, req.Email, req.Password, req.Name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

func authLogoutHandler(sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		if err := sessions.SignOut(ctx); err != nil {
			// Local state is already cleared; report but keep 200.
			logger.Warn("logout: gateway sign-out failed", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
	}
}

func authMeHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := sessions.CurrentUser()
		if user == nil {
			writeError(w, http.StatusUnauthorized, "no active session")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func authProfileHandler(sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/auth/profile")
		defer span.End()

		var updates map[string]any
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		delete(updates, "id")
		delete(updates, "role") // roles change out of band, never here

		if !sessions.UpdateProfile(ctx, updates) {
			if sessions.CurrentUser() == nil {
				writeError(w, http.StatusUnauthorized, "no active session")
				return
			}
			writeError(w, http.StatusBadGateway, "profile update failed")
			return
		}
		writeJSON(w, http.StatusOK, sessions.CurrentUser())
	}
}

// ============================================================
// 2. Navigation guard
// ============================================================

func navigationDecisionHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		route := guard.Route{Path: q.Get("path")}
		if route.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		route.Public, _ = strconv.ParseBool(q.Get("public"))
		route.AdminOnly, _ = strconv.ParseBool(q.Get("admin_only"))

		decision := guard.Evaluate(r.Context(), route, sessions)
		writeJSON(w, http.StatusOK, map[string]string{
			"action":    decision.Action.String(),
			"return_to": decision.ReturnTo,
		})
	}
}
