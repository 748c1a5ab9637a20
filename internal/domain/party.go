package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Doctor and Patient are owned by the profile services; scheduling only reads them.
type Doctor struct {
	bun.BaseModel `bun:"table:doctors"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	FirstName      string    `bun:"first_name,notnull"`
	LastName       string    `bun:"last_name,notnull"`
	Specialization string    `bun:"specialization"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

type Patient struct {
	bun.BaseModel `bun:"table:patients"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	FirstName string    `bun:"first_name,notnull"`
	LastName  string    `bun:"last_name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
