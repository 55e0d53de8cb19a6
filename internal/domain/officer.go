package domain

import (
	"time"

	"github.com/google/uuid"
)

// Officer is a municipal reviewer. Officers are provisioned outside this
// service; it only reads them.
type Officer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}
