package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/miloc/internal/common"
)

const maxJSONBody = 1 << 20

type registerRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := s.accounts.Register(r.Context(), req.UserName, req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, userResponse{ID: u.ID, UserName: u.UserName, Email: u.Email})
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, msgConflict)
	default:
		s.logger.Error(r.Context(), "register failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.accounts.Login(r.Context(), req.UserName, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tokenResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken})
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
	default:
		s.logger.Error(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.accounts.RefreshToken(r.Context(), req.Refresh)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tokenResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken})
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrRefreshTokenExpired):
		s.unauthorized(w)
	default:
		s.logger.Error(r.Context(), "refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.accounts.Logout(r.Context(), req.Refresh); err != nil {
		s.logger.Error(r.Context(), "logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
