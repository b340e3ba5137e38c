package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wardflow/wardflow/internal/directory"
	"github.com/wardflow/wardflow/internal/domain/admission"
	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/pkg/metrics"
)

// maxNumberAttempts bounds the retry loop when two concurrent admits derive
// the same IPD number and the store's unique index rejects the loser.
const maxNumberAttempts = 3

// AdmissionService coordinates the multi-step operations that must keep the
// admission ledger and the bed registry mutually consistent. It is the sole
// writer of admission status/bed and of bed occupancy.
type AdmissionService struct {
	repo       admission.Repository
	bedRepo    bed.Repository
	seq        *SequenceAllocator
	patients   directory.PatientDirectory
	doctors    directory.DoctorDirectory
	panels     directory.PanelDirectory
	auditSvc   *AuditService
	mc         *metrics.Collector
	log        *zap.Logger
	tracer     trace.Tracer
	startMonth time.Month
}

func NewAdmissionService(
	repo admission.Repository,
	bedRepo bed.Repository,
	seq *SequenceAllocator,
	patients directory.PatientDirectory,
	doctors directory.DoctorDirectory,
	panels directory.PanelDirectory,
	auditSvc *AuditService,
	mc *metrics.Collector,
	log *zap.Logger,
	startMonth time.Month,
) *AdmissionService {
	return &AdmissionService{
		repo:       repo,
		bedRepo:    bedRepo,
		seq:        seq,
		patients:   patients,
		doctors:    doctors,
		panels:     panels,
		auditSvc:   auditSvc,
		mc:         mc,
		log:        log,
		tracer:     otel.Tracer("wardflow/admission"),
		startMonth: startMonth,
	}
}

// AdmitResult reports a created admission. Degraded is set when the doctor
// assignments could not be fully written: the admission and the bed
// occupation stand, and the caller should repair the doctor set through the
// edit path.
type AdmitResult struct {
	Admission *admission.Admission
	Degraded  bool
	Warnings  []string
}

// Admit runs the admission saga: validate, reserve the bed (the
// compare-and-set that decides races), then create the ledger row under a
// freshly derived IPD number. The bed reservation is the only step with a
// compensation: if the ledger insert ultimately fails, the bed is released
// again so no orphaned reservation survives.
func (s *AdmissionService) Admit(ctx context.Context, cmd *admission.AdmitCommand, callerID uuid.UUID, callerRole string, ip string) (*AdmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "AdmissionService.Admit")
	defer span.End()

	if err := validateAdmitCommand(cmd); err != nil {
		return nil, err
	}
	if cmd.AdmissionTime.After(time.Now()) {
		return nil, ErrFutureTimestamp
	}

	if _, err := s.patients.GetByID(ctx, cmd.PatientID); err != nil {
		return nil, err
	}

	// Read-then-decide uniqueness check. The friendly error carries the
	// conflicting IPD number; the partial unique index on the ledger is
	// the backstop for the race this check cannot close on its own.
	live, err := s.repo.GetActiveByPatient(ctx, cmd.PatientID)
	switch {
	case err == nil:
		return nil, &admission.AlreadyAdmittedError{AdmissionNumber: live.AdmissionNumber}
	case !errors.Is(err, admission.ErrAdmissionNotFound):
		return nil, fmt.Errorf("checking live admission: %w", err)
	}

	if cmd.PanelID != nil {
		if _, err := s.panels.GetByID(ctx, *cmd.PanelID); err != nil {
			return nil, err
		}
	}

	period := cmd.Period
	if period == "" {
		period = PeriodFor(cmd.AdmissionTime, s.startMonth)
	}

	admissionID := uuid.New()
	span.SetAttributes(attribute.String("admission.id", admissionID.String()))

	// Reserve the bed first. This is the point where a concurrent admit
	// for the same bed loses.
	if err := s.bedRepo.MarkOccupied(ctx, cmd.BedID, admissionID); err != nil {
		return nil, err
	}

	a := &admission.Admission{
		ID:               admissionID,
		PatientID:        cmd.PatientID,
		BedID:            cmd.BedID,
		PanelID:          cmd.PanelID,
		AttendantName:    strings.TrimSpace(cmd.AttendantName),
		AttendantPhone:   strings.TrimSpace(cmd.AttendantPhone),
		IdentityDocument: cmd.IdentityDocument,
		Status:           admission.StatusAdmitted,
		AdmissionTime:    cmd.AdmissionTime,
		CreatedBy:        cmd.CreatedBy,
	}

	if err := s.createWithFreshNumber(ctx, a, period); err != nil {
		// Compensate the reservation; the admission row never landed.
		if relErr := s.bedRepo.MarkAvailable(ctx, cmd.BedID, admissionID); relErr != nil && !errors.Is(relErr, bed.ErrBedReassigned) {
			s.log.Error("failed to release bed after admission create failed",
				zap.String("bed_id", cmd.BedID.String()),
				zap.Error(relErr),
			)
		}
		return nil, err
	}

	result := &AdmitResult{Admission: a}

	// Doctor-assignment failure is a soft failure: the admission and bed
	// occupation remain valid with an incomplete doctor set.
	if err := s.repo.ReplaceDoctors(ctx, a.ID, cmd.DoctorIDs); err != nil {
		s.mc.PartialWritesTotal.WithLabelValues("admit", "doctor_assignment").Inc()
		s.log.Error("doctor assignment failed after admission was created",
			zap.String("admission_id", a.ID.String()),
			zap.Error(err),
		)
		result.Degraded = true
		result.Warnings = append(result.Warnings,
			"attending doctors could not be recorded; repair via edit")
	} else {
		for _, docID := range cmd.DoctorIDs {
			a.Doctors = append(a.Doctors, admission.DoctorAssignment{
				AdmissionID: a.ID,
				DoctorID:    docID,
			})
		}
	}

	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	s.mc.AdmissionsTotal.WithLabelValues(outcome).Inc()

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "create",
		ResourceType: "admission",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"admission_number":%q,"bed_id":%q}`, a.AdmissionNumber, a.BedID),
	})

	s.log.Info("patient admitted",
		zap.String("admission_id", a.ID.String()),
		zap.String("admission_number", a.AdmissionNumber),
		zap.String("bed_id", a.BedID.String()),
		zap.Bool("degraded", result.Degraded),
	)

	return result, nil
}

// createWithFreshNumber derives the next IPD number and inserts the ledger
// row, retrying with a re-derived number when a concurrent admit won the
// same one.
func (s *AdmissionService) createWithFreshNumber(ctx context.Context, a *admission.Admission, period string) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.seq.NextAdmissionNumber(ctx, period)
		if err != nil {
			return err
		}
		a.AdmissionNumber = number

		err = s.repo.Create(ctx, a)
		if err == nil {
			return nil
		}
		if errors.Is(err, admission.ErrDuplicateNumber) {
			s.mc.SequenceRetriesTotal.Inc()
			s.log.Warn("admission number conflict, retrying",
				zap.String("admission_number", number),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return err
	}
	return fmt.Errorf("%w: exhausted %d attempts for period %q", ErrAllocationFailed, maxNumberAttempts, period)
}

// Discharge closes a live stay with a terminal status and releases its bed.
// The release is guarded: a bed already reassigned elsewhere is left alone.
func (s *AdmissionService) Discharge(ctx context.Context, id uuid.UUID, dischargeTime time.Time, terminal admission.Status, callerID uuid.UUID, callerRole string, ip string) (*admission.Admission, error) {
	ctx, span := s.tracer.Start(ctx, "AdmissionService.Discharge")
	defer span.End()

	if !terminal.IsTerminal() {
		return nil, admission.ErrInvalidStatus
	}
	if dischargeTime.IsZero() {
		return nil, &ValidationError{Fields: []string{"discharge_time is required"}}
	}
	if dischargeTime.After(time.Now()) {
		return nil, ErrFutureTimestamp
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := a.Close(terminal, dischargeTime); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("closing admission: %w", err)
	}

	if err := s.bedRepo.MarkAvailable(ctx, a.BedID, a.ID); err != nil && !errors.Is(err, bed.ErrBedReassigned) {
		s.mc.PartialWritesTotal.WithLabelValues("discharge", "bed_release").Inc()
		return nil, &PartialWriteError{Operation: "discharge", Step: "bed_release", Err: err}
	}

	s.mc.DischargesTotal.WithLabelValues(string(terminal)).Inc()

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "update",
		ResourceType: "admission",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"status":%q}`, terminal),
	})

	s.log.Info("admission closed",
		zap.String("admission_id", a.ID.String()),
		zap.String("admission_number", a.AdmissionNumber),
		zap.String("status", string(terminal)),
	)

	return a, nil
}

// Transfer moves a live stay to a different available bed. Writes are
// ordered occupy-new, repoint-admission, release-old so a reader of the new
// bed never sees it double-booked; the transient both-beds-occupied window
// is accepted.
func (s *AdmissionService) Transfer(ctx context.Context, id, newBedID uuid.UUID, shiftTime time.Time, callerID uuid.UUID, callerRole string, ip string) (*admission.Admission, error) {
	ctx, span := s.tracer.Start(ctx, "AdmissionService.Transfer")
	defer span.End()

	if shiftTime.After(time.Now()) {
		return nil, ErrFutureTimestamp
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != admission.StatusAdmitted {
		return nil, admission.ErrAdmissionTerminal
	}
	if newBedID == a.BedID {
		return nil, &ValidationError{Fields: []string{"new bed must differ from current bed"}}
	}

	if err := s.bedRepo.MarkOccupied(ctx, newBedID, a.ID); err != nil {
		return nil, err
	}

	oldBedID := a.BedID
	a.BedID = newBedID
	if err := s.repo.Update(ctx, a); err != nil {
		s.mc.PartialWritesTotal.WithLabelValues("transfer", "admission_update").Inc()
		return nil, &PartialWriteError{Operation: "transfer", Step: "admission_update", Err: err}
	}

	if err := s.bedRepo.MarkAvailable(ctx, oldBedID, a.ID); err != nil && !errors.Is(err, bed.ErrBedReassigned) {
		s.mc.PartialWritesTotal.WithLabelValues("transfer", "old_bed_release").Inc()
		return nil, &PartialWriteError{Operation: "transfer", Step: "old_bed_release", Err: err}
	}

	s.mc.BedTransfersTotal.Inc()

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "update",
		ResourceType: "admission",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"bed_id":%q,"previous_bed_id":%q}`, newBedID, oldBedID),
	})

	s.log.Info("bed shifted",
		zap.String("admission_id", a.ID.String()),
		zap.String("from_bed", oldBedID.String()),
		zap.String("to_bed", newBedID.String()),
	)

	return a, nil
}

// Edit updates attendant, panel, identity-document and attending-doctor
// fields on a live stay. Bed and status never change here. A supplied
// doctor set replaces the existing one wholesale.
func (s *AdmissionService) Edit(ctx context.Context, id uuid.UUID, cmd *admission.EditCommand, callerID uuid.UUID, callerRole string, ip string) (*admission.Admission, error) {
	ctx, span := s.tracer.Start(ctx, "AdmissionService.Edit")
	defer span.End()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, admission.ErrAdmissionTerminal
	}

	if cmd.DoctorIDs != nil && len(*cmd.DoctorIDs) == 0 {
		return nil, admission.ErrNoDoctors
	}

	if cmd.AttendantName != nil {
		if strings.TrimSpace(*cmd.AttendantName) == "" {
			return nil, &ValidationError{Fields: []string{"attendant_name cannot be empty"}}
		}
		a.AttendantName = strings.TrimSpace(*cmd.AttendantName)
	}
	if cmd.AttendantPhone != nil {
		if strings.TrimSpace(*cmd.AttendantPhone) == "" {
			return nil, &ValidationError{Fields: []string{"attendant_phone cannot be empty"}}
		}
		a.AttendantPhone = strings.TrimSpace(*cmd.AttendantPhone)
	}
	if cmd.IdentityDocument != nil {
		if err := validateIdentityDocument(*cmd.IdentityDocument); err != nil {
			return nil, err
		}
		a.IdentityDocument = *cmd.IdentityDocument
	}
	if cmd.PanelID != nil {
		if _, err := s.panels.GetByID(ctx, *cmd.PanelID); err != nil {
			return nil, err
		}
		a.PanelID = cmd.PanelID
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("updating admission: %w", err)
	}

	if cmd.DoctorIDs != nil {
		if err := s.repo.ReplaceDoctors(ctx, a.ID, *cmd.DoctorIDs); err != nil {
			s.mc.PartialWritesTotal.WithLabelValues("edit", "doctor_assignment").Inc()
			return nil, &PartialWriteError{Operation: "edit", Step: "doctor_assignment", Err: err}
		}
		a.Doctors = a.Doctors[:0]
		for _, docID := range *cmd.DoctorIDs {
			a.Doctors = append(a.Doctors, admission.DoctorAssignment{AdmissionID: a.ID, DoctorID: docID})
		}
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "update",
		ResourceType: "admission",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
	})

	return a, nil
}

// Delete hard-removes an admission in any state; it is a destructive data
// correction, not a lifecycle transition. The freed IPD number is not
// reserved and will be reissued to the next admission in that period.
// Returns the released number.
func (s *AdmissionService) Delete(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "AdmissionService.Delete")
	defer span.End()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	// Release the bed if this admission still holds it; a bed reassigned
	// (or long since released) is left untouched.
	if err := s.bedRepo.MarkAvailable(ctx, a.BedID, a.ID); err != nil &&
		!errors.Is(err, bed.ErrBedReassigned) && !errors.Is(err, bed.ErrBedNotFound) {
		s.mc.PartialWritesTotal.WithLabelValues("delete", "bed_release").Inc()
		return "", &PartialWriteError{Operation: "delete", Step: "bed_release", Err: err}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.mc.PartialWritesTotal.WithLabelValues("delete", "admission_delete").Inc()
		return "", &PartialWriteError{Operation: "delete", Step: "admission_delete", Err: err}
	}

	s.mc.DeletionsTotal.Inc()

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "delete",
		ResourceType: "admission",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"admission_number":%q}`, a.AdmissionNumber),
	})

	s.log.Info("admission deleted",
		zap.String("admission_id", a.ID.String()),
		zap.String("admission_number", a.AdmissionNumber),
	)

	return a.AdmissionNumber, nil
}

func (s *AdmissionService) GetAdmission(ctx context.Context, id uuid.UUID) (*admission.Admission, error) {
	return s.repo.GetByID(ctx, id)
}

// AdmissionView is the display projection of one admission with its
// collaborator records embedded.
type AdmissionView struct {
	*admission.Admission
	Patient *directory.Patient  `json:"patient,omitempty"`
	Bed     *bed.Bed            `json:"bed,omitempty"`
	Panel   *directory.Panel    `json:"panel,omitempty"`
	Doctors []*directory.Doctor `json:"doctors"`
}

type PagedAdmissionViews struct {
	Admissions []*AdmissionView
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

// ListAdmissions returns a paginated ledger view with embedded patient, bed,
// doctor and panel records. Missing collaborator records degrade to nil
// rather than failing the listing.
func (s *AdmissionService) ListAdmissions(ctx context.Context, q *admission.ListQuery) (*PagedAdmissionViews, error) {
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	page, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}

	doctorsByID := make(map[uuid.UUID]*directory.Doctor)
	if docs, err := s.doctors.List(ctx); err == nil {
		for _, d := range docs {
			doctorsByID[d.ID] = d
		}
	} else {
		s.log.Warn("doctor directory unavailable for listing expansion", zap.Error(err))
	}

	views := make([]*AdmissionView, 0, len(page.Admissions))
	for _, a := range page.Admissions {
		v := &AdmissionView{Admission: a, Doctors: []*directory.Doctor{}}
		if p, err := s.patients.GetByID(ctx, a.PatientID); err == nil {
			v.Patient = p
		}
		if b, err := s.bedRepo.GetByID(ctx, a.BedID); err == nil {
			v.Bed = b
		}
		if a.PanelID != nil {
			if p, err := s.panels.GetByID(ctx, *a.PanelID); err == nil {
				v.Panel = p
			}
		}
		for _, docID := range a.DoctorIDs() {
			if d, ok := doctorsByID[docID]; ok {
				v.Doctors = append(v.Doctors, d)
			}
		}
		views = append(views, v)
	}

	return &PagedAdmissionViews{
		Admissions: views,
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}, nil
}

func validateAdmitCommand(cmd *admission.AdmitCommand) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.BedID == uuid.Nil {
		errs = append(errs, "bed_id is required")
	}
	if len(cmd.DoctorIDs) == 0 {
		errs = append(errs, "at least one doctor_id is required")
	}
	if cmd.AdmissionTime.IsZero() {
		errs = append(errs, "admission_time is required")
	}
	if strings.TrimSpace(cmd.AttendantName) == "" {
		errs = append(errs, "attendant_name is required")
	}
	if strings.TrimSpace(cmd.AttendantPhone) == "" {
		errs = append(errs, "attendant_phone is required")
	}
	if err := validateIdentityDocument(cmd.IdentityDocument); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, ve.Fields...)
		} else {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateIdentityDocument(doc admission.IdentityDocument) error {
	if !doc.Type.IsValid() {
		return admission.ErrInvalidIdentityDocType
	}
	if doc.Type != admission.IDDocNone && strings.TrimSpace(doc.Number) == "" {
		return &ValidationError{Fields: []string{"identity document number is required unless type is none"}}
	}
	return nil
}
