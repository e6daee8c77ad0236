package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/server/services"
	"github.com/go-chi/chi/v5"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", common.ErrValidation)
	}
	return id, nil
}

func pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	var skip, limit int
	var err error
	if v := q.Get("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: invalid skip", common.ErrValidation)
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: invalid limit", common.ErrValidation)
		}
	}
	return skip, limit, nil
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	user, err := s.users.Register(r.Context(), services.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserOut(user))
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	session, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidCredentials):
			s.metrics.recordLogin("invalid_credentials")
		case errors.Is(err, common.ErrAccountDisabled):
			s.metrics.recordLogin("disabled")
		default:
			s.metrics.recordLogin("error")
		}
		s.writeServiceError(w, r, err)
		return
	}

	s.metrics.recordLogin("success")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: session.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   session.ExpiresAt,
	})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toMeOut(currentUser(r.Context())))
}

func (s *HTTPServer) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.avatars.PresignUpload(r.Context(), currentUser(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avatarUploadOut{
		Key:       up.Key,
		UploadURL: up.UploadURL,
		AvatarURL: up.AvatarURL,
		ExpiresAt: up.ExpiresAt,
	})
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	user, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserOut(user))
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	list, err := s.users.List(r.Context(), skip, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]userOut, 0, len(list))
	for _, u := range list {
		out = append(out, toUserOut(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	list, err := s.secrets.List(r.Context(), skip, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	viewer := currentUser(r.Context())
	out := make([]secretOut, 0, len(list))
	for _, sec := range list {
		out = append(out, toSecretOut(sec, viewer))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	current := currentUser(r.Context())
	sec, err := s.secrets.Create(r.Context(), current, req.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSecretOut(sec, current))
}

func (s *HTTPServer) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sec, err := s.secrets.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSecretOut(sec, currentUser(r.Context())))
}

func (s *HTTPServer) handleUpdateSecret(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req contentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	current := currentUser(r.Context())
	sec, err := s.secrets.UpdateContent(r.Context(), current, id, req.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSecretOut(sec, current))
}

func (s *HTTPServer) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.secrets.Delete(r.Context(), currentUser(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	secretID, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	skip, limit, err := pageParams(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	list, err := s.comments.ListBySecret(r.Context(), secretID, skip, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	viewer := currentUser(r.Context())
	out := make([]commentOut, 0, len(list))
	for _, c := range list {
		out = append(out, toCommentOut(c, viewer))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	secretID, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req contentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	current := currentUser(r.Context())
	c, err := s.comments.Create(r.Context(), current, secretID, req.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentOut(c, current))
}

func (s *HTTPServer) handleGetComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := s.comments.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentOut(c, currentUser(r.Context())))
}

func (s *HTTPServer) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req contentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	current := currentUser(r.Context())
	c, err := s.comments.UpdateContent(r.Context(), current, id, req.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentOut(c, current))
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.comments.Delete(r.Context(), currentUser(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
