// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the identity anchor. Tasks and files belong to exactly one user.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
