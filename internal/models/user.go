// Package models contains the persisted shapes of the matcha tables the seeder writes.
package models

import "time"

// Gender is the self-declared gender stored on a profile.
type Gender string

// Supported genders.
const (
	GenderMan   Gender = "Man"
	GenderWoman Gender = "Woman"
)

// Genders lists every Gender value.
var Genders = []Gender{GenderMan, GenderWoman}

// Orientation is the dating preference used for match filtering.
type Orientation string

// Supported orientations.
const (
	OrientationLikesMen   Orientation = "likes men"
	OrientationLikesWomen Orientation = "likes women"
	OrientationLikesBoth  Orientation = "likes men and women"
)

// Orientations lists every Orientation value.
var Orientations = []Orientation{OrientationLikesMen, OrientationLikesWomen, OrientationLikesBoth}

// User represents a row of the users table. The id is assigned by the store.
type User struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Username     string      `gorm:"uniqueIndex;not null" json:"username"`
	Email        string      `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string      `gorm:"column:password_hash;not null" json:"-"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Gender       Gender      `json:"gender"`
	Orientation  Orientation `json:"orientation"`
	Birthday     time.Time   `gorm:"type:date" json:"birthday"`
	Bio          string      `gorm:"type:text" json:"bio"`
	Verified     bool        `json:"verified"`
	FameRating   float64     `gorm:"type:decimal(5,2)" json:"fame_rating"`
}

// TableName pins the table name to the backend schema.
func (User) TableName() string {
	return "users"
}

// UserLocation is the one-to-one location row owned by a user.
type UserLocation struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name to the backend schema.
func (UserLocation) TableName() string {
	return "user_locations"
}
