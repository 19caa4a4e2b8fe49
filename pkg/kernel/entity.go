package kernel

import "time"

// Entity is the shared persistence base embedded into every aggregate.
// A flat embedded struct instead of a type hierarchy: entities compose it
// and stay plain values.
type Entity struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewEntity stamps a fresh entity base with the given id.
func NewEntity(id string) Entity {
	now := time.Now().UTC()
	return Entity{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Touch updates the modification timestamp.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
