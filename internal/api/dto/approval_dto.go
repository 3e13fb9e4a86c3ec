package dto

// ApprovalActionRequest payload for approve/reject calls. Notes are optional
// on approval and mandatory on rejection.
type ApprovalActionRequest struct {
	Notes string `json:"notes"`
}
