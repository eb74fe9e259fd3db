package model

import "time"

type User struct {
	ID        int64
	UUID      string
	Nickname  string
	CreatedAt time.Time
}
