// Package handlers contains the REST handlers over the repositories and
// the session coordinator.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/entities"
	"collabgraph-backend/pkg/common"
	apperrors "collabgraph-backend/pkg/errors"
)

// UserHandler serves the user CRUD endpoints.
type UserHandler struct {
	users    ports.UserRepository
	validate *validator.Validate
	errors   *apperrors.ErrorHandler
	logger   *zap.Logger
}

// NewUserHandler creates a user handler.
func NewUserHandler(users ports.UserRepository, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		validate: validator.New(),
		errors:   errorHandler,
		logger:   logger,
	}
}

// CreateUserRequest is the POST /users payload.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}

// UpdateUserRequest is the PUT /users/{userID} payload.
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Avatar   *string `json:"avatar" validate:"omitempty,url"`
}

// CreateUser handles POST /users.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	user, err := entities.NewUser(uuid.New().String(), req.Username, req.Email)
	if err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}
	user.Avatar = req.Avatar

	if err := h.users.Create(r.Context(), user); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.logger.Info("User created",
		zap.String("userId", user.ID),
		zap.String("username", user.Username))
	common.RespondJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /users/{userID}.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, user)
}

// ListUsers handles GET /users.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, users)
}

// UpdateUser handles PUT /users/{userID}. Only the account owner may
// update it.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	callerID, _ := common.GetUserID(r.Context())
	if callerID != userID {
		h.errors.Handle(w, r, apperrors.NewForbiddenError("cannot update another user"))
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
	}
	user.UpdatedAt = time.Now()

	if err := h.users.Update(r.Context(), user); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /users/{userID}.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	callerID, _ := common.GetUserID(r.Context())
	if callerID != userID {
		h.errors.Handle(w, r, apperrors.NewForbiddenError("cannot delete another user"))
		return
	}
	if err := h.users.Delete(r.Context(), userID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"id": userID})
}
