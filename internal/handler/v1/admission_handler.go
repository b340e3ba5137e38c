package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wardflow/wardflow/internal/domain"
	"github.com/wardflow/wardflow/internal/domain/admission"
	"github.com/wardflow/wardflow/internal/service"
)

type AdmissionHandler struct {
	svc *service.AdmissionService
}

func NewAdmissionHandler(svc *service.AdmissionService) *AdmissionHandler {
	return &AdmissionHandler{svc: svc}
}

type identityDocumentRequest struct {
	Type   string `json:"type" binding:"required,iddoc"`
	Number string `json:"number"`
}

type admitRequest struct {
	PatientID      uuid.UUID               `json:"patient_id" binding:"required"`
	BedID          uuid.UUID               `json:"bed_id" binding:"required"`
	DoctorIDs      []uuid.UUID             `json:"doctor_ids" binding:"required,min=1"`
	PanelID        *uuid.UUID              `json:"panel_id"`
	AdmissionTime  time.Time               `json:"admission_time" binding:"required"`
	AttendantName  string                  `json:"attendant_name" binding:"required"`
	AttendantPhone string                  `json:"attendant_phone" binding:"required"`
	IdentityDoc    identityDocumentRequest `json:"identity_document" binding:"required"`
	Period         string                  `json:"period"`
}

type admitResponse struct {
	Admission *admission.Admission `json:"admission"`
	Degraded  bool                 `json:"degraded,omitempty"`
	Warnings  []string             `json:"warnings,omitempty"`
}

func (h *AdmissionHandler) Admit(c *gin.Context) {
	var req admitRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerFrom(c)
	result, err := h.svc.Admit(c.Request.Context(), &admission.AdmitCommand{
		PatientID:      req.PatientID,
		BedID:          req.BedID,
		DoctorIDs:      req.DoctorIDs,
		PanelID:        req.PanelID,
		AdmissionTime:  req.AdmissionTime,
		AttendantName:  req.AttendantName,
		AttendantPhone: req.AttendantPhone,
		IdentityDocument: admission.IdentityDocument{
			Type:   admission.IdentityDocType(req.IdentityDoc.Type),
			Number: req.IdentityDoc.Number,
		},
		Period:    req.Period,
		CreatedBy: claims.UserID,
	}, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, admitResponse{
		Admission: result.Admission,
		Degraded:  result.Degraded,
		Warnings:  result.Warnings,
	})
}

func (h *AdmissionHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.GetAdmission(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AdmissionHandler) List(c *gin.Context) {
	q := &admission.ListQuery{
		Period:   c.Query("period"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := admission.Status(raw)
		if !status.IsValid() {
			respondError(c, http.StatusBadRequest, "invalid status filter")
			return
		}
		q.Status = &status
	}
	if raw := c.Query("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid patient_id filter")
			return
		}
		q.PatientID = &id
	}

	page, err := h.svc.ListAdmissions(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

type patchRequest struct {
	Status         *string                  `json:"status"`
	DischargeTime  *time.Time               `json:"discharge_time"`
	DoctorIDs      *[]uuid.UUID             `json:"doctor_ids"`
	PanelID        *uuid.UUID               `json:"panel_id"`
	AttendantName  *string                  `json:"attendant_name"`
	AttendantPhone *string                  `json:"attendant_phone"`
	IdentityDoc    *identityDocumentRequest `json:"identity_document"`
}

// Patch covers the edit path and, when a terminal status is supplied, the
// simplified discharge path.
func (h *AdmissionHandler) Patch(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req patchRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerFrom(c)

	if req.Status != nil {
		dischargeTime := time.Now()
		if req.DischargeTime != nil {
			dischargeTime = *req.DischargeTime
		}
		a, err := h.svc.Discharge(c.Request.Context(), id, dischargeTime,
			admission.Status(*req.Status), claims.UserID, string(claims.Role), c.ClientIP())
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondOK(c, a)
		return
	}

	cmd := &admission.EditCommand{
		DoctorIDs:      req.DoctorIDs,
		PanelID:        req.PanelID,
		AttendantName:  req.AttendantName,
		AttendantPhone: req.AttendantPhone,
		UpdatedBy:      claims.UserID,
	}
	if req.IdentityDoc != nil {
		cmd.IdentityDocument = &admission.IdentityDocument{
			Type:   admission.IdentityDocType(req.IdentityDoc.Type),
			Number: req.IdentityDoc.Number,
		}
	}

	a, err := h.svc.Edit(c.Request.Context(), id, cmd, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

type dischargeRequest struct {
	DischargeTime time.Time `json:"discharge_time" binding:"required"`
	Status        string    `json:"status" binding:"required"`
}

func (h *AdmissionHandler) Discharge(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req dischargeRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerFrom(c)
	a, err := h.svc.Discharge(c.Request.Context(), id, req.DischargeTime,
		admission.Status(req.Status), claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

type shiftBedRequest struct {
	NewBedID  uuid.UUID `json:"new_bed_id" binding:"required"`
	ShiftTime time.Time `json:"shift_time" binding:"required"`
}

func (h *AdmissionHandler) ShiftBed(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req shiftBedRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerFrom(c)
	a, err := h.svc.Transfer(c.Request.Context(), id, req.NewBedID, req.ShiftTime,
		claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

type deleteResponse struct {
	ReleasedNumber string `json:"released_admission_number"`
}

func (h *AdmissionHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := callerFrom(c)
	number, err := h.svc.Delete(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, deleteResponse{ReleasedNumber: number})
}

// callerFrom returns the verified claims stored by the auth middleware. The
// middleware guarantees presence on protected routes.
func callerFrom(c *gin.Context) *domain.Claims {
	if v, ok := c.Get(contextKeyClaims); ok {
		if claims, ok := v.(*domain.Claims); ok {
			return claims
		}
	}
	return &domain.Claims{}
}
