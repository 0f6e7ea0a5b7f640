package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"collabgraph-backend/application/collab"
	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/entities"
	"collabgraph-backend/pkg/common"
	apperrors "collabgraph-backend/pkg/errors"
)

// DiagramHandler serves the diagram CRUD, collaborator and participant
// endpoints.
type DiagramHandler struct {
	diagrams    ports.DiagramRepository
	users       ports.UserRepository
	coordinator *collab.Coordinator
	validate    *validator.Validate
	errors      *apperrors.ErrorHandler
	logger      *zap.Logger
}

// NewDiagramHandler creates a diagram handler.
func NewDiagramHandler(
	diagrams ports.DiagramRepository,
	users ports.UserRepository,
	coordinator *collab.Coordinator,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *DiagramHandler {
	return &DiagramHandler{
		diagrams:    diagrams,
		users:       users,
		coordinator: coordinator,
		validate:    validator.New(),
		errors:      errorHandler,
		logger:      logger,
	}
}

// CreateDiagramRequest is the POST /diagrams payload.
type CreateDiagramRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	BpmnXML     string `json:"bpmnXml"`
	IsPublic    bool   `json:"isPublic"`
}

// UpdateDiagramRequest is the PUT /diagrams/{diagramID} payload.
type UpdateDiagramRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsPublic    *bool   `json:"isPublic"`
}

// UpdateContentRequest is the PUT /diagrams/{diagramID}/content payload.
type UpdateContentRequest struct {
	BpmnXML string `json:"bpmnXml" validate:"required"`
}

// AddCollaboratorRequest is the POST collaborators payload.
type AddCollaboratorRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// CreateDiagram handles POST /diagrams.
func (h *DiagramHandler) CreateDiagram(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, apperrors.NewUnauthorizedError(""))
		return
	}

	var req CreateDiagramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	diagram, err := entities.NewDiagram(uuid.New().String(), req.Title, req.Description, ownerID)
	if err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}
	diagram.BpmnXML = req.BpmnXML
	diagram.IsPublic = req.IsPublic

	if err := h.diagrams.Create(r.Context(), diagram); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.logger.Info("Diagram created",
		zap.String("diagramId", diagram.ID),
		zap.String("owner", ownerID))
	common.RespondJSON(w, http.StatusCreated, diagram)
}

// GetDiagram handles GET /diagrams/{diagramID}.
func (h *DiagramHandler) GetDiagram(w http.ResponseWriter, r *http.Request) {
	diagram, err := h.loadAccessible(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, diagram)
}

// ListDiagrams handles GET /diagrams, returning the caller's owned and
// shared diagrams.
func (h *DiagramHandler) ListDiagrams(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errors.Handle(w, r, apperrors.NewUnauthorizedError(""))
		return
	}
	diagrams, err := h.diagrams.ListForUser(r.Context(), userID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, diagrams)
}

// UpdateDiagram handles PUT /diagrams/{diagramID}, metadata only.
func (h *DiagramHandler) UpdateDiagram(w http.ResponseWriter, r *http.Request) {
	diagram, err := h.loadOwned(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateDiagramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	if req.Title != nil {
		diagram.Title = *req.Title
	}
	if req.Description != nil {
		diagram.Description = *req.Description
	}
	if req.IsPublic != nil {
		diagram.IsPublic = *req.IsPublic
	}
	diagram.UpdatedAt = time.Now()

	if err := h.diagrams.Update(r.Context(), diagram); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, diagram)
}

// UpdateContent handles PUT /diagrams/{diagramID}/content. Every save
// bumps the version.
func (h *DiagramHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	diagram, err := h.loadAccessible(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	diagram.UpdateXML(req.BpmnXML)
	if err := h.diagrams.Update(r.Context(), diagram); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"id":           diagram.ID,
		"version":      diagram.Version,
		"lastModified": diagram.LastModified,
	})
}

// DeleteDiagram handles DELETE /diagrams/{diagramID}.
func (h *DiagramHandler) DeleteDiagram(w http.ResponseWriter, r *http.Request) {
	diagram, err := h.loadOwned(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := h.diagrams.Delete(r.Context(), diagram.ID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"id": diagram.ID})
}

// AddCollaborator handles POST /diagrams/{diagramID}/collaborators.
func (h *DiagramHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	diagram, err := h.loadOwned(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req AddCollaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}
	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if !diagram.AddCollaborator(req.UserID) {
		h.errors.Handle(w, r, apperrors.NewConflictError("user already collaborates on this diagram"))
		return
	}

	if err := h.diagrams.Update(r.Context(), diagram); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, diagram)
}

// RemoveCollaborator handles DELETE /diagrams/{diagramID}/collaborators/{userID}.
func (h *DiagramHandler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	diagram, err := h.loadOwned(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	userID := chi.URLParam(r, "userID")
	if !diagram.RemoveCollaborator(userID) {
		h.errors.Handle(w, r, apperrors.NewNotFoundError("collaborator"))
		return
	}

	if err := h.diagrams.Update(r.Context(), diagram); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, diagram)
}

// GetParticipants handles GET /diagrams/{diagramID}/participants,
// listing who is currently in the collaboration session.
func (h *DiagramHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	diagram, err := h.loadAccessible(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	participants, err := h.coordinator.GetParticipants(r.Context(), diagram.ID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, participants)
}

// loadAccessible loads the diagram and checks the caller can read it.
func (h *DiagramHandler) loadAccessible(r *http.Request) (*entities.Diagram, error) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		return nil, apperrors.NewUnauthorizedError("")
	}
	diagram, err := h.diagrams.GetByID(r.Context(), chi.URLParam(r, "diagramID"))
	if err != nil {
		return nil, err
	}
	if !diagram.CanAccess(userID) {
		return nil, apperrors.NewForbiddenError("no access to this diagram")
	}
	return diagram, nil
}

// loadOwned loads the diagram and checks the caller owns it.
func (h *DiagramHandler) loadOwned(r *http.Request) (*entities.Diagram, error) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		return nil, apperrors.NewUnauthorizedError("")
	}
	diagram, err := h.diagrams.GetByID(r.Context(), chi.URLParam(r, "diagramID"))
	if err != nil {
		return nil, err
	}
	if diagram.OwnerID != userID {
		return nil, apperrors.NewForbiddenError("only the owner may modify this diagram")
	}
	return diagram, nil
}
