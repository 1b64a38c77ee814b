// Package repository declares the storage interfaces the services depend on.
// Implementations live in the sqlite, redis and memory subpackages.
package repository

import (
	"context"
	"errors"

	"github.com/sakif/crewcrew/internal/model"
)

// ErrKeyNotFound is returned by KV.Get when the key has no value.
var ErrKeyNotFound = errors.New("repository: key not found")

// KV is the local key-value store that holds the persisted LocalProfile.
// It plays the role browser local storage plays for a web client: string
// keys, string values, one writer by convention.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CrewRepository stores the user's crew roster.
type CrewRepository interface {
	Create(ctx context.Context, crew *model.Crew) error
	GetByID(ctx context.Context, id string) (*model.Crew, error)
	List(ctx context.Context) ([]model.Crew, error)
	Update(ctx context.Context, crew *model.Crew) error
	Delete(ctx context.Context, id string) error
}
