package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Address is the single saved delivery address of a user.
type Address struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	House     string    `gorm:"column:house;not null"`
	Area      string    `gorm:"column:area;not null"`
	City      string    `gorm:"column:city;not null"`
	State     string    `gorm:"column:state;not null"`
	Zipcode   string    `gorm:"column:zipcode;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Format renders the snapshot stored on orders.
func (a Address) Format() string {
	return fmt.Sprintf("%s, %s, %s, %s %s", a.House, a.Area, a.City, a.State, a.Zipcode)
}
