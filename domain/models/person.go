package models

import (
	"time"

	"github.com/google/uuid"
)

type Person struct {
	ID      uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Display name (user-assigned, empty until named)
	Name string `gorm:"type:varchar(255)"`

	// Denormalized count of faces pointing at this person. Always recomputed
	// from the faces table when faces move, never incremented blindly.
	FaceCount int `gorm:"default:0"`

	// Representative face used as avatar
	CoverFaceID *uuid.UUID `gorm:"type:uuid"`

	// Tombstone forwarding: non-nil marks this person as merged into another.
	// The target of a merge is never itself a tombstone, so chains stay
	// acyclic. A tombstoned person keeps FaceCount == 0 permanently.
	MergedIntoID *uuid.UUID `gorm:"type:uuid"`

	IsHidden   bool `gorm:"default:false"`
	IsFavorite bool `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Owner User   `gorm:"foreignKey:OwnerID"`
	Faces []Face `gorm:"foreignKey:PersonID"`
}

func (Person) TableName() string {
	return "persons"
}

// Tombstoned reports whether this person has been merged away.
func (p *Person) Tombstoned() bool {
	return p.MergedIntoID != nil
}
