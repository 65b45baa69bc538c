package domain

import "time"

// Resident is a read-only view of the profile store. Resident CRUD and
// deduplication live outside this service.
type Resident struct {
	ID        string
	FirstName string
	LastName  string
	CreatedAt time.Time
}
