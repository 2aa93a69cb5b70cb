package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"itbudget/internal/apperr"
	"itbudget/internal/scope"
	"itbudget/models"
	"itbudget/testutil"
)

func seedUser(t *testing.T, db *gorm.DB, roleCodes ...string) *models.User {
	t.Helper()
	role := models.Role{Name: "requester-" + t.Name()}
	for _, code := range roleCodes {
		perm := models.Permission{Name: code, Category: "menu"}
		require.NoError(t, db.FirstOrCreate(&perm, models.Permission{Name: code}).Error)
		role.Permissions = append(role.Permissions, perm)
	}
	require.NoError(t, db.Create(&role).Error)
	user := &models.User{Login: "u-" + t.Name(), RoleID: role.ID}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestResolveRoleDefaults(t *testing.T) {
	db := testutil.OpenDB(t)
	user := seedUser(t, db, "menu:projects", "menu:expenses")

	identity, err := scope.Resolve(db, user.ID)
	require.NoError(t, err)

	assert.True(t, identity.HasPermission("menu:projects"))
	assert.True(t, identity.HasAll("menu:projects", "menu:expenses"))
	assert.False(t, identity.HasPermission("menu:charge-outs"))
	assert.True(t, identity.HasAny("menu:charge-outs", "menu:expenses"))
	assert.False(t, identity.HasAny("menu:charge-outs", "menu:roles"))
}

func TestGrantOverrideAddsPermission(t *testing.T) {
	db := testutil.OpenDB(t)
	user := seedUser(t, db, "menu:projects")

	// Role default lacks menu:charge-outs; an explicit granted=true override
	// makes it effective regardless.
	require.NoError(t, db.Create(&models.PermissionGrant{
		UserID: user.ID, Code: "menu:charge-outs", Granted: true,
	}).Error)

	identity, err := scope.Resolve(db, user.ID)
	require.NoError(t, err)
	assert.True(t, identity.HasPermission("menu:charge-outs"))
}

func TestGrantOverrideRevokesRoleDefault(t *testing.T) {
	db := testutil.OpenDB(t)
	user := seedUser(t, db, "menu:projects", "menu:expenses")

	require.NoError(t, db.Create(&models.PermissionGrant{
		UserID: user.ID, Code: "menu:expenses", Granted: false,
	}).Error)

	identity, err := scope.Resolve(db, user.ID)
	require.NoError(t, err)
	assert.False(t, identity.HasPermission("menu:expenses"))
	assert.True(t, identity.HasPermission("menu:projects"))
}

func TestOpCoScope(t *testing.T) {
	db := testutil.OpenDB(t)
	user := seedUser(t, db, "menu:charge-outs")
	opco1 := models.OpCo{Name: "OpCo One", Code: "OPCO1"}
	opco2 := models.OpCo{Name: "OpCo Two", Code: "OPCO2"}
	require.NoError(t, db.Create(&opco1).Error)
	require.NoError(t, db.Create(&opco2).Error)
	require.NoError(t, db.Create(&models.OpCoGrant{UserID: user.ID, OpCoID: opco1.ID}).Error)

	identity, err := scope.Resolve(db, user.ID)
	require.NoError(t, err)
	assert.True(t, identity.CanAccessOpCo(opco1.ID))
	assert.False(t, identity.CanAccessOpCo(opco2.ID))
}

func TestEmptyOpCoScopeMatchesNothing(t *testing.T) {
	db := testutil.OpenDB(t)
	user := seedUser(t, db, "menu:charge-outs")
	opco := models.OpCo{Name: "OpCo One", Code: "OPCO1"}
	require.NoError(t, db.Create(&opco).Error)
	project := models.Project{BudgetPoolID: 1, Name: "p", ManagerID: 1, SupervisorID: 1, Currency: "TWD"}
	require.NoError(t, db.Create(&project).Error)
	require.NoError(t, db.Create(&models.ChargeOut{ProjectID: project.ID, OpCoID: opco.ID}).Error)

	identity, err := scope.Resolve(db, user.ID)
	require.NoError(t, err)

	// Permission present, scope empty: the list is accessible but empty.
	assert.True(t, identity.HasPermission("menu:charge-outs"))
	var rows []models.ChargeOut
	require.NoError(t, identity.ScopeOpCos(db.Model(&models.ChargeOut{}), "op_co_id").Find(&rows).Error)
	assert.Empty(t, rows)
}

func TestResolveUnknownUser(t *testing.T) {
	db := testutil.OpenDB(t)
	_, err := scope.Resolve(db, 9999)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestIdentitySurvivesSerializationRoundTrip(t *testing.T) {
	identity := &scope.Identity{
		UserID:      7,
		Permissions: []string{"menu:projects"},
		OpCoIDs:     []uint{3},
	}
	// Maps are rebuilt lazily, as after a cache hit.
	assert.True(t, identity.HasPermission("menu:projects"))
	assert.True(t, identity.CanAccessOpCo(3))
	assert.False(t, identity.CanAccessOpCo(4))
}
