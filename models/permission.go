package models

import "gorm.io/gorm"

// Permission is a named capability, grouped by category for administration.
type Permission struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"unique;not null"`
	Description string `json:"description"`
	Category    string `json:"category" gorm:"not null"`
}

// PermissionGrant overrides a role default for a single user. Granted=true
// adds the code to the user's effective set, Granted=false removes it even
// when the role default includes it.
type PermissionGrant struct {
	gorm.Model
	UserID  uint   `json:"userId" gorm:"not null;uniqueIndex:idx_user_code"`
	Code    string `json:"code" gorm:"not null;uniqueIndex:idx_user_code"`
	Granted bool   `json:"granted" gorm:"not null"`
}

// OpCoGrant is one row of a user's operating-company allowlist. A user with
// no rows sees no charge-out or OM-expense records at all.
type OpCoGrant struct {
	gorm.Model
	UserID uint `json:"userId" gorm:"not null;uniqueIndex:idx_user_opco"`
	OpCoID uint `json:"opCoId" gorm:"not null;uniqueIndex:idx_user_opco"`
}
