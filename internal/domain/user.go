package domain

import "time"

// Role enumerates principal roles. The keys match the deployment's identity
// service and are used verbatim in approval steps and chat access rules.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleCityAdmin   Role = "admin_kota"
	RoleOPDAdmin    Role = "admin_opd"
	RoleSectionHead Role = "bidang"
	RoleUnitHead    Role = "seksi"
	RoleHelpdesk    Role = "helpdesk"
	RoleTechnician  Role = "teknisi"
	RoleCitizen     Role = "pengguna"
	RoleOPDEmployee Role = "pegawai_opd"
)

// User is a registered principal (citizen or staff).
type User struct {
	ID       string
	Username string
	FullName string
	Email    string
	Phone    *string
	Role     Role
	OPDID    *string
	IsActive bool
	CreatedAt time.Time
}
