package user

import "time"

// Role is the marketplace role of an account.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgency Role = "agency"
	RoleAdmin  Role = "admin"
)

// User is the read model of an account owned by the account service.
// The messaging core only resolves identities against it.
type User struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Username   string `gorm:"not null"`
	Email      string `gorm:"uniqueIndex;not null"`
	IsVerified bool   `gorm:"not null;default:false"`
	Role       Role   `gorm:"type:text;not null;default:user"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}
