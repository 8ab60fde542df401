package models

// RecordStatus is the canonical moderation state shared by every submitted
// resource. Records are created pending and move to approved or rejected
// exactly once, by an admin decision.
type RecordStatus string

const (
	StatusPending  RecordStatus = "pending"
	StatusApproved RecordStatus = "approved"
	StatusRejected RecordStatus = "rejected"
)

// Valid reports whether the status is one of the canonical states.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Final reports whether the status is a moderation outcome.
func (s RecordStatus) Final() bool {
	return s == StatusApproved || s == StatusRejected
}

// Label returns the display label for the status. Unknown statuses yield an
// empty label.
func (s RecordStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	}
	return ""
}

// RecordFilter captures the common list criteria for moderated resources.
type RecordFilter struct {
	Status   *RecordStatus
	Uploader string
	Lake     string
	Search   string
	Page     int
	PageSize int
}
