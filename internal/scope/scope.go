// Package scope computes an actor's effective permissions and operating
// company allowlist. The effective set is role defaults, plus explicit
// granted=true overrides, minus granted=false overrides. It is resolved
// once per request and cached; individual checks are set lookups.
package scope

import (
	"errors"

	"gorm.io/gorm"

	"itbudget/internal/apperr"
	"itbudget/models"
)

// Identity is the resolved actor context attached to every request. The
// exported fields make it JSON-cacheable; the lookup maps are rebuilt
// lazily after deserialization.
type Identity struct {
	UserID      uint     `json:"user_id"`
	Login       string   `json:"login"`
	RoleName    string   `json:"role"`
	Permissions []string `json:"permissions"`
	OpCoIDs     []uint   `json:"opco_ids"`

	permSet map[string]struct{}
	opCoSet map[uint]struct{}
}

// Resolve loads the user's role defaults and applies the per-user overrides
// and OpCo grants.
func Resolve(db *gorm.DB, userID uint) (*Identity, error) {
	var user models.User
	if err := db.Preload("Role.Permissions").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Storage(err)
	}

	effective := make(map[string]struct{}, len(user.Role.Permissions))
	for _, p := range user.Role.Permissions {
		effective[p.Name] = struct{}{}
	}

	var grants []models.PermissionGrant
	if err := db.Where("user_id = ?", userID).Find(&grants).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	for _, g := range grants {
		if g.Granted {
			effective[g.Code] = struct{}{}
		} else {
			delete(effective, g.Code)
		}
	}

	var opCoIDs []uint
	if err := db.Model(&models.OpCoGrant{}).
		Where("user_id = ?", userID).
		Pluck("op_co_id", &opCoIDs).Error; err != nil {
		return nil, apperr.Storage(err)
	}

	permissions := make([]string, 0, len(effective))
	for code := range effective {
		permissions = append(permissions, code)
	}

	identity := &Identity{
		UserID:      user.ID,
		Login:       user.Login,
		RoleName:    user.Role.Name,
		Permissions: permissions,
		OpCoIDs:     opCoIDs,
	}
	identity.index()
	return identity, nil
}

func (id *Identity) index() {
	id.permSet = make(map[string]struct{}, len(id.Permissions))
	for _, code := range id.Permissions {
		id.permSet[code] = struct{}{}
	}
	id.opCoSet = make(map[uint]struct{}, len(id.OpCoIDs))
	for _, opco := range id.OpCoIDs {
		id.opCoSet[opco] = struct{}{}
	}
}

func (id *Identity) ensure() {
	if id.permSet == nil || id.opCoSet == nil {
		id.index()
	}
}

func (id *Identity) HasPermission(code string) bool {
	id.ensure()
	_, ok := id.permSet[code]
	return ok
}

func (id *Identity) HasAny(codes ...string) bool {
	for _, code := range codes {
		if id.HasPermission(code) {
			return true
		}
	}
	return false
}

func (id *Identity) HasAll(codes ...string) bool {
	for _, code := range codes {
		if !id.HasPermission(code) {
			return false
		}
	}
	return true
}

// CanAccessOpCo reports whether the operating company is on the actor's
// allowlist. An empty allowlist means no OpCo rows are visible at all.
func (id *Identity) CanAccessOpCo(opCoID uint) bool {
	id.ensure()
	_, ok := id.opCoSet[opCoID]
	return ok
}

// ScopeOpCos narrows a query on a table with an op_co_id column to the
// actor's allowlist. With an empty allowlist the query matches nothing
// rather than everything.
func (id *Identity) ScopeOpCos(q *gorm.DB, column string) *gorm.DB {
	if len(id.OpCoIDs) == 0 {
		return q.Where("1 = 0")
	}
	return q.Where(column+" IN ?", id.OpCoIDs)
}
