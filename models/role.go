package models

import "time"

// Role names seeded at startup.
const (
	RoleAdministrator = "administrator"
	RoleUser          = "user"
)

// Role represents user roles with numeric primary key
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

// SeedRoles is the master role list.
func SeedRoles() []Role {
	return []Role{
		{Name: RoleAdministrator, Description: "full access, sees every screenshot"},
		{Name: RoleUser, Description: "uploads and reviews own screenshots"},
	}
}
