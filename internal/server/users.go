package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"billing/internal/admin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	IDToken   string       `json:"idToken"`
	ExpiresIn int64        `json:"expiresIn"`
	User      loginProfile `json:"user"`
}

type loginProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	res, err := s.admin.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}

	resp := loginResponse{IDToken: res.IDToken, ExpiresIn: res.ExpiresIn}
	if u := res.User; u != nil {
		resp.User = loginProfile{ID: u.ID, Email: u.Email, Name: u.DisplayName, IsAdmin: u.Admin}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	users, err := s.admin.ListUsers(r.Context(), caller)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	if users == nil {
		users = []admin.UserRecord{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req admin.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	msg, err := s.admin.CreateUser(r.Context(), caller, req)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req admin.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	id := chi.URLParam(r, "id")
	if req.ID != "" && req.ID != id {
		writeError(w, http.StatusBadRequest, "id in body does not match the URL", map[string]string{"field": "id"})
		return
	}
	req.ID = id

	msg, err := s.admin.UpdateUser(r.Context(), caller, req)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg, ID: id})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	msg, err := s.admin.DeleteUser(r.Context(), caller, id)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg, ID: id})
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	msg, err := s.admin.SendWelcomeEmail(r.Context(), caller, id)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg, ID: id})
}
