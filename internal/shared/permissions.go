package shared

// Back-office capabilities. Names are stored upper-case in the permissions table.
const (
	PermCreateEvent       = "CREATE_EVENT"
	PermEditEvent         = "EDIT_EVENT"
	PermDeleteEvent       = "DELETE_EVENT"
	PermManageEventStatus = "MANAGE_EVENT_STATUS"
	PermViewUsers         = "VIEW_USERS"
	PermManageAdmins      = "MANAGE_ADMINS"
	PermManagePermissions = "MANAGE_PERMISSIONS"
	PermManageCategories  = "MANAGE_CATEGORIES"
	PermViewAnalytics     = "VIEW_ANALYTICS"
)

// PermissionDescriptions documents the reference capabilities created by the
// initial migration.
var PermissionDescriptions = map[string]string{
	PermCreateEvent:       "Create new events",
	PermEditEvent:         "Edit existing events and their ticket types",
	PermDeleteEvent:       "Delete events and ticket types",
	PermManageEventStatus: "Move events through the approval lifecycle",
	PermViewUsers:         "View user accounts",
	PermManageAdmins:      "Manage admin accounts",
	PermManagePermissions: "Assign and revoke permissions",
	PermManageCategories:  "Manage categories and subcategories",
	PermViewAnalytics:     "View sales analytics",
}

// CoreScopes lists every reference capability.
func CoreScopes() []string {
	return []string{
		PermCreateEvent,
		PermEditEvent,
		PermDeleteEvent,
		PermManageEventStatus,
		PermViewUsers,
		PermManageAdmins,
		PermManagePermissions,
		PermManageCategories,
		PermViewAnalytics,
	}
}
