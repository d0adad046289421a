package models

import "time"

// Student represents an enrolled student whose papers can be submitted.
// Code is the human-facing roster identifier (e.g. "STU001") that teachers
// supply during upload; ID is the internal key all pipeline rows reference.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:64;uniqueIndex;not null" json:"code"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
