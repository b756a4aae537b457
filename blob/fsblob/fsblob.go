// Copyright 2025 Carrel Authors
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


// Package fsblob implements blob.Store on the local filesystem. Buckets
// map to directories under a root, keys to files within them.
package fsblob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carrelhq/carrel/blob"
)

// Store reads and writes objects under a root directory.
type Store struct {
	root string
}

var _ blob.Store = (*Store)(nil)

// New creates a filesystem store rooted at root, creating the directory if
// needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("fsblob: root directory is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("fsblob: create root: %w", err)
	}
	return &Store{root: root}, nil
}

// Get returns the object's bytes, or blob.ErrNotFound.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", blob.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("fsblob: read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put writes the object, creating the bucket directory if needed.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("fsblob: create bucket: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("fsblob: write %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("fsblob: delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// objectPath maps bucket and key to a path, rejecting anything that would
// escape the root.
func (s *Store) objectPath(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("fsblob: bucket and key are required")
	}

	path := filepath.Join(s.root, bucket, key)
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("fsblob: %s/%s escapes the store root", bucket, key)
	}
	return path, nil
}
