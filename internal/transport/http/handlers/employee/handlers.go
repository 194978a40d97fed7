package employeehandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"erp/internal/domain/employee"
	"erp/internal/transport/http/api"
	"erp/internal/transport/http/middleware"
)

// Directory is the read surface exposed over HTTP. The directory itself is
// maintained by another system; these routes exist so payroll screens can
// show who a run will cover.
type Directory interface {
	ListActive(ctx context.Context) ([]employee.Employee, error)
	Get(ctx context.Context, id string) (employee.Employee, error)
}

type Handler struct {
	Directory Directory
}

func NewHandler(directory Directory) *Handler {
	return &Handler{Directory: directory}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.handleListActive)
		r.Get("/{employeeID}", h.handleGet)
	})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Directory.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, employees, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Directory.Get(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	if errors.Is(err, employee.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
		return
	}
	api.Fail(w, http.StatusInternalServerError, "internal_error", "something went wrong", reqID)
}
