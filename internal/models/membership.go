package models

import "time"

// Crew is a named group of users. Each crew has exactly one canonical alert
// channel on the chat transport.
type Crew struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	AlertChannelID string `gorm:"index"`
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CrewMembership maps a user to a crew with a role. Exactly one active
// membership per (user, crew) pair.
type CrewMembership struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex:idx_member_user_crew;index"`
	CrewID    string `gorm:"uniqueIndex:idx_member_user_crew;index"`
	Role      Role
	JoinedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberLocation is the last known fix for a user. Fix acquisition is owned
// by the mobile client; the engine only stores and queries these.
type MemberLocation struct {
	UserID     string `gorm:"primaryKey"`
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}
