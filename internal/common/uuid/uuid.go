package uuid

import "github.com/google/uuid"

// Generator produces opaque identifiers.
type Generator interface {
	NewUUID() string
}

// DefaultUUID implements Generator with random v4 UUIDs.
type DefaultUUID struct{}

func New() *DefaultUUID {
	return &DefaultUUID{}
}

func (d *DefaultUUID) NewUUID() string {
	return uuid.New().String()
}
