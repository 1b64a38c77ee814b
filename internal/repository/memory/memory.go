// Package memory holds map-backed repositories. The server uses them when no
// database is configured, and service tests use them as fakes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/repository"
)

var (
	_ repository.KV             = (*KV)(nil)
	_ repository.CrewRepository = (*Crews)(nil)
)

// KV is a concurrency-safe map. The zero value is not usable; call NewKV.
type KV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewKV() *KV {
	return &KV{values: make(map[string]string)}
}

func (kv *KV) Get(_ context.Context, key string) (string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.values[key]
	if !ok {
		return "", repository.ErrKeyNotFound
	}
	return v, nil
}

func (kv *KV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *KV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return nil
}

// Crews keeps the roster in insertion order.
type Crews struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]model.Crew
}

func NewCrews() *Crews {
	return &Crews{byID: make(map[string]model.Crew)}
}

func (r *Crews) Create(_ context.Context, crew *model.Crew) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if crew.ID == "" {
		crew.ID = uuid.NewString()
	}
	if _, exists := r.byID[crew.ID]; exists {
		return apperror.Conflict("crew " + crew.ID + " already exists")
	}
	now := time.Now()
	crew.CreatedAt = now
	crew.UpdatedAt = now
	r.byID[crew.ID] = *crew
	r.order = append(r.order, crew.ID)
	return nil
}

func (r *Crews) GetByID(_ context.Context, id string) (*model.Crew, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, apperror.NotFound("crew", id)
	}
	return &c, nil
}

func (r *Crews) List(_ context.Context) ([]model.Crew, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Crew, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}

func (r *Crews) Update(_ context.Context, crew *model.Crew) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byID[crew.ID]
	if !ok {
		return apperror.NotFound("crew", crew.ID)
	}
	crew.CreatedAt = old.CreatedAt
	crew.UpdatedAt = time.Now()
	r.byID[crew.ID] = *crew
	return nil
}

func (r *Crews) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return apperror.NotFound("crew", id)
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
