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
	"errors"
	"log/slog"
	"strings"

	"github.com/carrelhq/carrel/storage"
)

// FallbackSystemPrompt is the prompt of last resort, used when the user has
// no active persona and no default prompt is configured or reachable.
const FallbackSystemPrompt = "You are a helpful research assistant. Ground your answers in the provided documents when they are relevant."

// Settings supplies the knowledge base's configured default system prompt.
// Implementations may be backed by a settings store that is sometimes
// unreachable; the resolver treats any error as "no default configured".
type Settings interface {
	// DefaultSystemPrompt returns the configured default prompt, or an
	// empty string when none is set.
	DefaultSystemPrompt(ctx context.Context) (string, error)
}

// StaticSettings returns a Settings that always serves prompt.
func StaticSettings(prompt string) Settings {
	return staticSettings(prompt)
}

type staticSettings string

func (s staticSettings) DefaultSystemPrompt(context.Context) (string, error) {
	return string(s), nil
}

// Resolver picks the effective system prompt for a chat turn. Resolution is
// a pure read: the user's active persona wins, then the knowledge base's
// default prompt, then FallbackSystemPrompt. It never fails; a broken step
// degrades to the next one.
type Resolver struct {
	personas storage.PersonaRepository
	settings Settings
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver) error

// WithResolverLogger sets a custom logger.
// Default is slog.Default().
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewResolver creates a new prompt resolver. settings may be nil, in which
// case resolution skips straight from personas to FallbackSystemPrompt.
func NewResolver(personas storage.PersonaRepository, settings Settings, opts ...ResolverOption) (*Resolver, error) {
	if personas == nil {
		return nil, ErrPersonaRepositoryRequired
	}

	r := &Resolver{
		personas: personas,
		settings: settings,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// ResolveSystemPrompt returns the system prompt to use for userID's next
// chat turn.
func (r *Resolver) ResolveSystemPrompt(ctx context.Context, userID string) string {
	active, err := r.personas.GetActivePersona(ctx, userID)
	switch {
	case err == nil:
		return active.Prompt
	case !errors.Is(err, storage.ErrNotFound):
		// Storage trouble downgrades to the default prompt rather than
		// failing the chat turn.
		r.logger.Warn("could not resolve active persona", "user_id", userID, "err", err)
	}

	if r.settings != nil {
		prompt, err := r.settings.DefaultSystemPrompt(ctx)
		if err != nil {
			r.logger.Warn("could not load default system prompt", "err", err)
		} else if strings.TrimSpace(prompt) != "" {
			return prompt
		}
	}

	return FallbackSystemPrompt
}
