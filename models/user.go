package models

import "gorm.io/gorm"

// User is an authenticated actor. Authentication itself happens upstream;
// the core only consumes the identity the JWT middleware resolves.
type User struct {
	gorm.Model
	Login        string `json:"login" gorm:"uniqueIndex;not null"`
	FullName     string `json:"fullName"`
	PasswordHash string `json:"-"`
	RoleID       uint   `json:"roleId" gorm:"not null;index"`
	Role         Role   `json:"role" gorm:"foreignKey:RoleID"`
}
