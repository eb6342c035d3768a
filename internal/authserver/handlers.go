package authserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type tokenResponse struct {
	AccessToken      string        `json:"access_token"`
	TokenType        string        `json:"token_type"`
	RefreshToken     string        `json:"refresh_token"`
	ExpiresIn        int64         `json:"expires_in"`
	RefreshExpiresIn int64         `json:"refresh_expires_in"`
	User             *userResponse `json:"user,omitempty"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed body", http.StatusBadRequest)
			return
		}
		user, err := s.users.GetByEmail(req.Email)
		if err != nil || !CheckPasswordHash(req.Password, user.PasswordHash) {
			writeJSONError(w, "invalid_grant", "Invalid email or password", http.StatusUnauthorized)
			return
		}
		s.issue(w, user, true)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed body", http.StatusBadRequest)
			return
		}
		if req.Email == "" {
			writeJSONError(w, "invalid_request", "email is required", http.StatusBadRequest)
			return
		}
		if err := ValidatePasswordStrength(req.Password); err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		user, err := s.users.Create(req.Email, req.Name, req.Password)
		if errors.Is(err, ErrUserExists) {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("register")
			writeJSONError(w, "server_error", "could not create user", http.StatusInternalServerError)
			return
		}
		// register omits the user; the client follows up with /auth/me
		s.issue(w, user, false)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)

		s.refreshDelayL.RLock()
		delay := s.refreshDelay
		s.refreshDelayL.RUnlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeJSONError(w, "invalid_request", "refreshToken is required", http.StatusBadRequest)
			return
		}
		if s.failRefresh.Load() {
			writeJSONError(w, "invalid_grant", "refresh disabled", http.StatusUnauthorized)
			return
		}
		userID, err := s.refresh.Consume(req.RefreshToken)
		if err != nil {
			writeJSONError(w, "invalid_grant", err.Error(), http.StatusUnauthorized)
			return
		}
		user, err := s.users.GetByID(userID)
		if err != nil {
			writeJSONError(w, "invalid_grant", err.Error(), http.StatusUnauthorized)
			return
		}
		s.issue(w, user, false)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", "no user", http.StatusUnauthorized)
			return
		}
		user, err := s.users.GetByID(userID)
		if err != nil {
			writeJSONError(w, "unauthorized", err.Error(), http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	}
}

// EchoHandler writes the request body back, for replay checks
func (s *Server) EchoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, "invalid_request", "unreadable body", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func (s *Server) issue(w http.ResponseWriter, user *User, withUser bool) {
	accessToken, err := s.access.Create(user, s.generation.Load())
	if err != nil {
		s.logger.Error().Err(err).Msg("create access token")
		writeJSONError(w, "server_error", "could not issue token", http.StatusInternalServerError)
		return
	}
	refreshToken, err := s.refresh.Create(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("create refresh token")
		writeJSONError(w, "server_error", "could not issue token", http.StatusInternalServerError)
		return
	}
	resp := tokenResponse{
		AccessToken:      accessToken,
		TokenType:        "Bearer",
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(s.access.expiry.Seconds()),
		RefreshExpiresIn: int64(s.refresh.expiry.Seconds()),
	}
	if withUser {
		resp.User = toUserResponse(user)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toUserResponse(u *User) *userResponse {
	return &userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
