package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wardflow/wardflow/internal/directory"
	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/internal/service"
)

// RegistryHandler serves the read-only collaborator views consumed by
// UI-adjacent code: beds, occupancy, patients, doctors, panels.
type RegistryHandler struct {
	bedRepo   bed.Repository
	occupancy *service.OccupancyService
	patients  directory.PatientDirectory
	doctors   directory.DoctorDirectory
	panels    directory.PanelDirectory
}

func NewRegistryHandler(
	bedRepo bed.Repository,
	occupancy *service.OccupancyService,
	patients directory.PatientDirectory,
	doctors directory.DoctorDirectory,
	panels directory.PanelDirectory,
) *RegistryHandler {
	return &RegistryHandler{
		bedRepo:   bedRepo,
		occupancy: occupancy,
		patients:  patients,
		doctors:   doctors,
		panels:    panels,
	}
}

func (h *RegistryHandler) ListBeds(c *gin.Context) {
	q := &bed.ListQuery{Ward: c.Query("ward")}
	if raw := c.Query("status"); raw != "" {
		status := bed.Status(raw)
		if !status.IsValid() {
			respondError(c, http.StatusBadRequest, "invalid status filter")
			return
		}
		q.Status = &status
	}

	beds, err := h.bedRepo.List(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, beds)
}

func (h *RegistryHandler) Occupancy(c *gin.Context) {
	report, err := h.occupancy.Aggregate(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, report)
}

func (h *RegistryHandler) GetPatient(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.patients.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *RegistryHandler) ListDoctors(c *gin.Context) {
	docs, err := h.doctors.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, docs)
}

func (h *RegistryHandler) ListPanels(c *gin.Context) {
	panels, err := h.panels.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, panels)
}
