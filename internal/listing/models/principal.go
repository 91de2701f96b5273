package models

import (
	"strings"

	id "hearth/pkg/domain"
)

// Admin role names as issued by the user service.
const (
	RoleAdmin       = "ADMIN"
	RoleAdminPrefix = "ROLE_ADMIN"
)

// Principal is the authenticated caller of a lifecycle operation. A nil
// *Principal means no caller was authenticated.
type Principal struct {
	UserID id.UserID
	Roles  []string
}

func (p *Principal) IsAdmin() bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if strings.EqualFold(r, RoleAdmin) || strings.EqualFold(r, RoleAdminPrefix) {
			return true
		}
	}
	return false
}

// CanManage reports whether p owns l or is an admin.
func (p *Principal) CanManage(l *Listing) bool {
	if p == nil || l == nil {
		return false
	}
	return p.UserID == l.OwnerID || p.IsAdmin()
}
