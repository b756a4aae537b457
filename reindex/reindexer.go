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

package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/resilience"
	"github.com/carrelhq/carrel/storage"
)

// Processor re-runs the ingestion pipeline for one document, bypassing the
// content-hash short-circuit so a changed embedding model takes effect.
// ingestion.Orchestrator.Reprocess satisfies this.
type Processor interface {
	Reprocess(ctx context.Context, documentID string) error
}

// Config holds configuration for a reindex run.
type Config struct {
	// BatchSize is the number of documents processed between cancellation
	// checks and progress updates
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      10,
		ReportInterval: 10,
	}
}

// Reindexer re-embeds every completed document in the store. Deterministic
// vector ids make each document's new vectors overwrite its old ones in
// place, so a run can be repeated or resumed safely.
type Reindexer struct {
	docs      storage.DocumentRepository
	processor Processor
	config    *Config
	progress  io.Writer
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(docs storage.DocumentRepository, processor Processor, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		docs:      docs,
		processor: processor,
		config:    config,
		progress:  progress,
	}
}

// Run re-processes all completed documents, reporting progress to the
// configured writer. A document that fails is recorded as failed on its own
// record and the run continues; an open provider breaker halts the run,
// since every remaining document would fail the same way.
func (r *Reindexer) Run(ctx context.Context) error {
	all, err := r.docs.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	completed := make([]*core.Document, 0, len(all))
	for _, doc := range all {
		if doc.Status == core.StatusCompleted {
			completed = append(completed, doc)
		}
	}

	total := len(completed)
	if total == 0 {
		fmt.Fprintf(r.progress, "No completed documents to reindex (0 documents)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d documents (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	failed := 0

	for start := 0; start < total; start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > total {
			end = total
		}

		for _, doc := range completed[start:end] {
			err := r.processor.Reprocess(ctx, doc.Id)
			switch {
			case err == nil:
			case errors.Is(err, resilience.ErrCircuitOpen):
				fmt.Fprintf(r.progress, "\nEmbedding provider unavailable, halting\n")
				return fmt.Errorf("reindex halted after %d/%d documents: %w", processed, total, err)
			default:
				// The failure is durable on the document record; keep going.
				failed++
				fmt.Fprintf(r.progress, "\nFailed to reindex document %s: %v\n", doc.Id, err)
			}
			processed++
		}

		tracker.Update(processed)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d documents in %v (%.1f documents/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to reindex", failed, total)
	}
	return nil
}
