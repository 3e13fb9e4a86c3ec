package chat

import "github.com/spec-kit/servicedesk/internal/domain"

// CanAccessTicketRoom decides whether a user may join the realtime room of a
// ticket. City-level admins see everything; reporters and technicians are
// limited to their own tickets; OPD staff are limited to their OPD.
func CanAccessTicketRoom(userID string, role domain.Role, userOPD *string, ticket *domain.Ticket) bool {
	switch role {
	case domain.RoleSuperAdmin, domain.RoleCityAdmin:
		return true
	case domain.RoleCitizen, domain.RoleOPDEmployee:
		return ticket.ReporterID != nil && *ticket.ReporterID == userID
	case domain.RoleTechnician:
		return ticket.AssignedTo != nil && *ticket.AssignedTo == userID
	case domain.RoleOPDAdmin, domain.RoleSectionHead, domain.RoleUnitHead, domain.RoleHelpdesk:
		return userOPD != nil && *userOPD == ticket.OPDID
	default:
		return false
	}
}
