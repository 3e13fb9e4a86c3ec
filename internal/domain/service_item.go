package domain

// ServiceItem is a catalog entry for service requests. ApprovalLevels holds
// the approver role keys in configured order; a non-empty list with
// ApprovalRequired set makes new requests start in pending_approval with one
// step per level.
type ServiceItem struct {
	ID               string
	CatalogID        string
	Name             string
	Description      string
	ApprovalRequired bool
	ApprovalLevels   []Role
	IsActive         bool
}
