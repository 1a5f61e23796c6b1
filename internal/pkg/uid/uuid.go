package uid

import "github.com/google/uuid"

// UUID hands out version 7 UUIDs. They sort by creation time, which keeps
// sending ids roughly in insert order in the btree index.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (*UUID) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
