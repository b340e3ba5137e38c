package admission

import "errors"

var (
	ErrAdmissionNotFound       = errors.New("admission not found")
	ErrAdmissionTerminal       = errors.New("admission has already been closed")
	ErrInvalidStatusTransition = errors.New("invalid admission status transition")
	ErrInvalidStatus           = errors.New("invalid admission status")
	ErrInvalidIdentityDocType  = errors.New("invalid identity document type")
	ErrDuplicateNumber         = errors.New("admission number already in use")
	ErrNoDoctors               = errors.New("admission requires at least one attending doctor")
)

// AlreadyAdmittedError reports an existing live stay for the patient. It
// carries the conflicting IPD number so the operator can locate the record.
type AlreadyAdmittedError struct {
	AdmissionNumber string
}

func (e *AlreadyAdmittedError) Error() string {
	return "patient is already admitted under " + e.AdmissionNumber
}
