// Copyright 2025 The Carrel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persona

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/storage"
)

// Service manages a user's personas. Every operation is scoped to an owner:
// a persona belonging to someone else behaves as if it did not exist.
type Service struct {
	personas storage.PersonaRepository
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithServiceLogger sets a custom logger.
// Default is slog.Default().
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a new persona service.
func NewService(personas storage.PersonaRepository, opts ...ServiceOption) (*Service, error) {
	if personas == nil {
		return nil, ErrPersonaRepositoryRequired
	}

	s := &Service{
		personas: personas,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Create stores a new persona for ownerID. The persona starts inactive;
// use Activate to make it the owner's effective persona.
func (s *Service) Create(ctx context.Context, ownerID, name, prompt string) (*core.Persona, error) {
	created, err := s.personas.CreatePersona(ctx, &core.Persona{
		OwnerId: ownerID,
		Name:    name,
		Prompt:  prompt,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("persona created", "persona_id", created.Id, "owner_id", ownerID, "name", name)
	return created, nil
}

// Get retrieves one of ownerID's personas by id.
// Returns storage.ErrNotFound if the persona does not exist or belongs to
// another owner.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*core.Persona, error) {
	persona, err := s.personas.GetPersona(ctx, id)
	if err != nil {
		return nil, err
	}
	if persona.OwnerId != ownerID {
		return nil, fmt.Errorf("%w: persona %s", storage.ErrNotFound, id)
	}
	return persona, nil
}

// List retrieves all of ownerID's personas.
func (s *Service) List(ctx context.Context, ownerID string) ([]*core.Persona, error) {
	return s.personas.ListPersonasByOwner(ctx, ownerID)
}

// Active retrieves ownerID's currently active persona.
// Returns storage.ErrNotFound when no persona is active.
func (s *Service) Active(ctx context.Context, ownerID string) (*core.Persona, error) {
	return s.personas.GetActivePersona(ctx, ownerID)
}

// Update edits one of ownerID's personas. An empty name or prompt leaves
// that field unchanged.
func (s *Service) Update(ctx context.Context, ownerID, id, name, prompt string) (*core.Persona, error) {
	persona, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if name != "" {
		persona.Name = name
	}
	if prompt != "" {
		persona.Prompt = prompt
	}

	return s.personas.UpdatePersona(ctx, persona)
}

// Activate makes the persona ownerID's effective persona, deactivating any
// other persona the owner has.
// Returns storage.ErrNotFound if the persona does not exist or belongs to
// another owner.
func (s *Service) Activate(ctx context.Context, ownerID, id string) error {
	if err := s.personas.ActivatePersona(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.Info("persona activated", "persona_id", id, "owner_id", ownerID)
	return nil
}

// DeactivateAll clears ownerID's active persona without deleting anything.
// Prompt resolution falls back to the default prompt afterwards.
func (s *Service) DeactivateAll(ctx context.Context, ownerID string) error {
	return s.personas.DeactivateAllPersonas(ctx, ownerID)
}

// Delete removes one of ownerID's personas. Deleting the active persona
// also clears the owner's active pointer, so resolution never dereferences
// a deleted persona.
// Returns storage.ErrNotFound if the persona does not exist or belongs to
// another owner.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.personas.DeletePersona(ctx, id); err != nil {
		return err
	}
	s.logger.Info("persona deleted", "persona_id", id, "owner_id", ownerID)
	return nil
}
