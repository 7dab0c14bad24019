package domain

import "time"

// User is the identity the auth layer hands the rating subsystem. The
// core only ever consumes its opaque ID.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}
