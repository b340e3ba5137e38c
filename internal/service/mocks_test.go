package service

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wardflow/wardflow/internal/directory"
	"github.com/wardflow/wardflow/internal/domain"
	"github.com/wardflow/wardflow/internal/domain/admission"
	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/pkg/metrics"
)

// One collector per test binary; promauto panics on re-registration.
var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Collector
)

func testCollector() *metrics.Collector {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.NewCollector("wardflow_test")
	})
	return testMetrics
}

// -- Mock admission repository --

type mockAdmissionRepo struct {
	mu         sync.Mutex
	admissions map[uuid.UUID]*admission.Admission
	doctors    map[uuid.UUID][]uuid.UUID

	createErr         error
	latestErr         error
	updateErr         error
	deleteErr         error
	replaceDoctorsErr error
}

func newMockAdmissionRepo() *mockAdmissionRepo {
	return &mockAdmissionRepo{
		admissions: make(map[uuid.UUID]*admission.Admission),
		doctors:    make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockAdmissionRepo) Create(_ context.Context, a *admission.Admission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.admissions {
		if existing.AdmissionNumber == a.AdmissionNumber {
			return admission.ErrDuplicateNumber
		}
		if existing.PatientID == a.PatientID && existing.Status == admission.StatusAdmitted &&
			a.Status == admission.StatusAdmitted {
			return &admission.AlreadyAdmittedError{AdmissionNumber: existing.AdmissionNumber}
		}
	}
	cp := *a
	m.admissions[a.ID] = &cp
	return nil
}

func (m *mockAdmissionRepo) GetByID(_ context.Context, id uuid.UUID) (*admission.Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admissions[id]
	if !ok {
		return nil, admission.ErrAdmissionNotFound
	}
	return m.withDoctors(a), nil
}

func (m *mockAdmissionRepo) GetActiveByPatient(_ context.Context, patientID uuid.UUID) (*admission.Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admissions {
		if a.PatientID == patientID && a.Status == admission.StatusAdmitted {
			return m.withDoctors(a), nil
		}
	}
	return nil, admission.ErrAdmissionNotFound
}

func (m *mockAdmissionRepo) Update(_ context.Context, a *admission.Admission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.admissions[a.ID]; !ok {
		return admission.ErrAdmissionNotFound
	}
	cp := *a
	cp.Doctors = nil
	m.admissions[a.ID] = &cp
	return nil
}

func (m *mockAdmissionRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.admissions[id]; !ok {
		return admission.ErrAdmissionNotFound
	}
	delete(m.admissions, id)
	delete(m.doctors, id)
	return nil
}

func (m *mockAdmissionRepo) List(_ context.Context, q *admission.ListQuery) (*admission.PagedAdmissions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*admission.Admission
	for _, a := range m.admissions {
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.Period != "" && !strings.HasPrefix(a.AdmissionNumber, q.Period+"/") {
			continue
		}
		items = append(items, m.withDoctors(a))
	}
	return &admission.PagedAdmissions{
		Admissions: items,
		TotalCount: int64(len(items)),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: 1,
	}, nil
}

func (m *mockAdmissionRepo) ReplaceDoctors(_ context.Context, admissionID uuid.UUID, doctorIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceDoctorsErr != nil {
		return m.replaceDoctorsErr
	}
	m.doctors[admissionID] = append([]uuid.UUID(nil), doctorIDs...)
	return nil
}

func (m *mockAdmissionRepo) LatestNumberForPeriod(_ context.Context, period string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return "", m.latestErr
	}
	latest := ""
	for _, a := range m.admissions {
		if strings.HasPrefix(a.AdmissionNumber, period+"/") && a.AdmissionNumber > latest {
			latest = a.AdmissionNumber
		}
	}
	return latest, nil
}

func (m *mockAdmissionRepo) withDoctors(a *admission.Admission) *admission.Admission {
	cp := *a
	cp.Doctors = nil
	for _, docID := range m.doctors[a.ID] {
		cp.Doctors = append(cp.Doctors, admission.DoctorAssignment{AdmissionID: a.ID, DoctorID: docID})
	}
	return &cp
}

// -- Mock bed repository --

type mockBedRepo struct {
	mu   sync.Mutex
	beds map[uuid.UUID]*bed.Bed

	occupyErr  error
	releaseErr error
}

func newMockBedRepo() *mockBedRepo {
	return &mockBedRepo{beds: make(map[uuid.UUID]*bed.Bed)}
}

func (m *mockBedRepo) addBed(ward, number string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.beds[id] = &bed.Bed{ID: id, Ward: ward, BedNumber: number, Status: bed.StatusAvailable}
	return id
}

func (m *mockBedRepo) GetByID(_ context.Context, id uuid.UUID) (*bed.Bed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beds[id]
	if !ok {
		return nil, bed.ErrBedNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBedRepo) MarkOccupied(_ context.Context, bedID, admissionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.occupyErr != nil {
		return m.occupyErr
	}
	b, ok := m.beds[bedID]
	if !ok {
		return bed.ErrBedNotFound
	}
	if b.Status != bed.StatusAvailable {
		return bed.ErrBedUnavailable
	}
	b.Status = bed.StatusOccupied
	b.OccupyingAdmissionID = &admissionID
	return nil
}

func (m *mockBedRepo) MarkAvailable(_ context.Context, bedID, expectedAdmissionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return m.releaseErr
	}
	b, ok := m.beds[bedID]
	if !ok {
		return bed.ErrBedNotFound
	}
	if b.OccupyingAdmissionID == nil || *b.OccupyingAdmissionID != expectedAdmissionID {
		return bed.ErrBedReassigned
	}
	b.Status = bed.StatusAvailable
	b.OccupyingAdmissionID = nil
	return nil
}

func (m *mockBedRepo) List(_ context.Context, q *bed.ListQuery) ([]*bed.Bed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var beds []*bed.Bed
	for _, b := range m.beds {
		if q.Ward != "" && b.Ward != q.Ward {
			continue
		}
		if q.Status != nil && b.Status != *q.Status {
			continue
		}
		cp := *b
		beds = append(beds, &cp)
	}
	return beds, nil
}

func (m *mockBedRepo) ListByWard(ctx context.Context) (map[string][]*bed.Bed, error) {
	beds, err := m.List(ctx, &bed.ListQuery{})
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]*bed.Bed)
	for _, b := range beds {
		grouped[b.Ward] = append(grouped[b.Ward], b)
	}
	return grouped, nil
}

// -- Mock directories --

type mockDirectory struct {
	patients map[uuid.UUID]*directory.Patient
	doctors  map[uuid.UUID]*directory.Doctor
	panels   map[uuid.UUID]*directory.Panel
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		patients: make(map[uuid.UUID]*directory.Patient),
		doctors:  make(map[uuid.UUID]*directory.Doctor),
		panels:   make(map[uuid.UUID]*directory.Panel),
	}
}

func (m *mockDirectory) addPatient(name string) uuid.UUID {
	id := uuid.New()
	m.patients[id] = &directory.Patient{ID: id, FirstName: name}
	return id
}

func (m *mockDirectory) addDoctor(name string) uuid.UUID {
	id := uuid.New()
	m.doctors[id] = &directory.Doctor{ID: id, FirstName: name}
	return id
}

func (m *mockDirectory) addPanel(name string) uuid.UUID {
	id := uuid.New()
	m.panels[id] = &directory.Panel{ID: id, Name: name}
	return id
}

type patientDir struct{ *mockDirectory }

func (d patientDir) GetByID(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	p, ok := d.patients[id]
	if !ok {
		return nil, directory.ErrPatientNotFound
	}
	return p, nil
}

type doctorDir struct{ *mockDirectory }

func (d doctorDir) GetByID(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	doc, ok := d.doctors[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	return doc, nil
}

func (d doctorDir) List(_ context.Context) ([]*directory.Doctor, error) {
	docs := make([]*directory.Doctor, 0, len(d.doctors))
	for _, doc := range d.doctors {
		docs = append(docs, doc)
	}
	return docs, nil
}

type panelDir struct{ *mockDirectory }

func (d panelDir) GetByID(_ context.Context, id uuid.UUID) (*directory.Panel, error) {
	p, ok := d.panels[id]
	if !ok {
		return nil, directory.ErrPanelNotFound
	}
	return p, nil
}

func (d panelDir) List(_ context.Context) ([]*directory.Panel, error) {
	panels := make([]*directory.Panel, 0, len(d.panels))
	for _, p := range d.panels {
		panels = append(panels, p)
	}
	return panels, nil
}

// -- Mock audit repository --

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (m *mockAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}
