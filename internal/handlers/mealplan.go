package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nutriplan-app/apiserver/internal/services"
	"github.com/nutriplan-app/apiserver/internal/store"
	"github.com/nutriplan-app/apiserver/types"
)

// MealPlanHandler provides HTTP handlers for meal plans.
type MealPlanHandler struct {
	planService *services.MealPlanService
	authService *services.AuthService
}

// NewMealPlanHandler constructs a handler with the provided services.
func NewMealPlanHandler(planService *services.MealPlanService, authService *services.AuthService) *MealPlanHandler {
	return &MealPlanHandler{
		planService: planService,
		authService: authService,
	}
}

// MealPlanRouter registers meal plan routes. All routes require
// authentication.
func MealPlanRouter(r chi.Router, handler *MealPlanHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Post("/", handler.CreatePlan)
	r.Get("/", handler.ListPlans)
	r.Route("/{planID}", func(r chi.Router) {
		r.Get("/", handler.GetPlan)
		r.Delete("/", handler.DeletePlan)
	})
}

func (h *MealPlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req types.MealPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	plan, err := h.planService.Create(r.Context(), user.ID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPlanRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrPlanGeneration):
			writeError(w, http.StatusInternalServerError, "meal plan generation failed")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create meal plan")
		}
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

func (h *MealPlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plans, total, err := h.planService.ListByUser(r.Context(), user.ID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list meal plans")
		return
	}

	writeJSON(w, http.StatusOK, MealPlanListResponse{
		Items: plans,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *MealPlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parsePlanID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.planService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "meal plan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch meal plan")
		return
	}

	if plan.UserID != user.ID && user.Role != types.RoleAdmin {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

func (h *MealPlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parsePlanID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.planService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "meal plan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch meal plan")
		return
	}
	if plan.UserID != user.ID && user.Role != types.RoleAdmin {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	if err := h.planService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "meal plan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete meal plan")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MealPlanHandler) currentUser(r *http.Request) (types.User, error) {
	subject, err := subjectFromContext(r.Context())
	if err != nil {
		return types.User{}, err
	}
	return h.authService.GetByEmail(r.Context(), subject)
}

// MealPlanListResponse is the paginated list response payload.
type MealPlanListResponse struct {
	Items []types.MealPlan `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
}

func parsePlanID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "planID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid meal plan id")
	}
	return id, nil
}
