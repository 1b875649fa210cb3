package models

import "time"

type User struct {
	ID          string
	DisplayName string
	IsAdmin     bool
	MaxModels   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
