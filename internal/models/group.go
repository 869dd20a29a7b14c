package models

import "time"

// Group is the persistent identity a session is created around. Group CRUD
// lives outside this service; only the active flag is toggled here.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Platform  string    `db:"platform" json:"platform"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
