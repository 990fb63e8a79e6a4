package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal owner record the pipeline needs for owner-scoped
// operations. Authentication and account management live outside this core.
type User struct {
	ID    uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Email string    `gorm:"type:varchar(255);uniqueIndex;not null"`

	StorageUsedBytes int64 `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}
