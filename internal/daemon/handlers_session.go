package daemon

import (
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

type tokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if !s.decodeJSON(w, r, &creds) {
		return
	}

	id, c, err := s.app.Login(r.Context(), creds)
	if err != nil {
		s.fail(w, "login failed", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"identity": id,
		"cart":     c,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var user domain.User
	if !s.decodeJSON(w, r, &user) {
		return
	}

	resp, loggedIn, err := s.app.Register(r.Context(), user)
	if err != nil {
		s.fail(w, "registration failed", err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, map[string]any{
		"user":      resp.User,
		"logged_in": loggedIn,
	})
}

func (s *Server) handleSetToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	id, c, err := s.app.SetToken(r.Context(), req.Token)
	if err != nil {
		s.fail(w, "token rejected", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"identity": id,
		"cart":     c,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	// Expired tokens are dropped before reporting
	_, _ = s.app.Namespace(r.Context())
	s.jsonResponse(w, http.StatusOK, s.app.Session.Status())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Logout(r.Context()); err != nil {
		s.fail(w, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"url":      s.app.API.OAuthURL(),
		"callback": s.cfg.BaseURL() + "/auth/callback",
	})
}

// handleOAuthCallback adopts the token the API appended to the redirect and
// sends the browser to the landing view, or back to login on failure.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		http.Redirect(w, r, "/login?error=missing_token", http.StatusFound)
		return
	}

	if _, _, err := s.app.SetToken(r.Context(), raw); err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("invalid_token"), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	_, _ = s.app.Namespace(r.Context())
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"view":    "landing",
		"session": s.app.Session.Status(),
	})
}

func (s *Server) handleLoginView(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"view":      "login",
		"oauth_url": s.app.API.OAuthURL(),
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		resp["error"] = msg
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
