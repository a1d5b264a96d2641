package roles

import "github.com/ticketdesk/backoffice/internal/authz"

// Role describes one entry of the fixed role catalogue.
type Role struct {
	Name        authz.Role `json:"name"`
	Description string     `json:"description"`
	AdminTier   bool       `json:"adminTier"`
	Members     int        `json:"members"`
}

var descriptions = map[authz.Role]string{
	authz.RoleCustomer:     "Books tickets through the storefront",
	authz.RoleEventCreator: "Legacy organiser account without back-office access",
	authz.RoleAdmin:        "Back-office operator limited to granted permissions",
	authz.RoleSuperAdmin:   "Full access, manages admins and permissions",
}
