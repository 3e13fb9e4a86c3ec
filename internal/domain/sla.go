package domain

// SLAPolicy is one per-OPD, per-priority resolution window in hours.
// Working-hours and holiday calendars exist as configuration elsewhere but are
// not applied to the due-time arithmetic.
type SLAPolicy struct {
	ID             string
	OPDID          string
	Priority       PriorityCategory
	ResolutionTime int
}
