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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/carrelhq/carrel"
	"github.com/carrelhq/carrel/ai"
	"github.com/carrelhq/carrel/blob/fsblob"
	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/persona"
	"github.com/carrelhq/carrel/reindex"
	"github.com/carrelhq/carrel/storage/badger"
	"github.com/carrelhq/carrel/vecindex/qdrant"
)

// uploadBucket is where the ingest command stages file contents.
const uploadBucket = "uploads"

func main() {
	app := &cli.App{
		Name:  "carrel",
		Usage: "Scoped document knowledge base with semantic retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest local files into the knowledge base",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:  "scope",
						Usage: "Target scope: system, user:<id> or tenant:<id>",
						Value: "system",
					},
					&cli.StringFlag{
						Name:  "mime",
						Usage: "MIME type of the files (default: inferred from extension)",
					},
					&cli.StringFlag{
						Name:  "folder",
						Usage: "Folder ID to group the documents under",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Search indexed documents",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: append(engineFlags(),
					&cli.StringSliceFlag{
						Name:  "scope",
						Usage: "Scope to search: system, user:<id> or tenant:<id> (repeatable)",
						Value: cli.NewStringSlice("system"),
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of results to return",
						Value: 5,
					},
				),
			},
			{
				Name:  "personas",
				Usage: "Manage user personas",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List a user's personas",
						Action: personasListCommand,
						Flags:  personaFlags(),
					},
					{
						Name:      "create",
						Usage:     "Create a persona",
						ArgsUsage: "NAME PROMPT...",
						Action:    personaCreateCommand,
						Flags:     personaFlags(),
					},
					{
						Name:      "activate",
						Usage:     "Activate a persona for a user",
						ArgsUsage: "PERSONA_ID",
						Action:    personaActivateCommand,
						Flags:     personaFlags(),
					},
					{
						Name:   "deactivate",
						Usage:  "Deactivate all of a user's personas",
						Action: personaDeactivateCommand,
						Flags:  personaFlags(),
					},
					{
						Name:      "delete",
						Usage:     "Delete a persona",
						ArgsUsage: "PERSONA_ID",
						Action:    personaDeleteCommand,
						Flags:     personaFlags(),
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed and re-index all completed documents",
				Action: reindexCommand,
				Flags: append(engineFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Documents between cancellation checks",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 10,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// engineFlags are the flags shared by every command that opens the engine.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Path to the data directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "nomic-embed-text",
		},
		&cli.StringFlag{
			Name:  "api-key",
			Usage: "API key for the embedding service",
		},
		&cli.StringFlag{
			Name:  "qdrant",
			Usage: "Qdrant gRPC address; omit to keep vectors in process memory",
		},
	}
}

// personaFlags are the flags for persona subcommands, which only touch
// storage.
func personaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Path to the data directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "User the personas belong to",
			Required: true,
		},
	}
}

// engineFromFlags opens the engine described by the command's flags. The
// returned closer releases the engine and, when one was dialed, the Qdrant
// connection.
func engineFromFlags(c *cli.Context, extra ...carrel.EngineOption) (*carrel.Engine, func(), error) {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	}
	if key := c.String("api-key"); key != "" {
		opts = append(opts, ai.WithAPIKey(key))
	}
	aiConfig := ai.NewConfig(opts...)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	engineOpts := append([]carrel.EngineOption{carrel.WithAIConfig(aiConfig)}, extra...)

	var index *qdrant.Index
	if addr := c.String("qdrant"); addr != "" {
		var err error
		index, err = qdrant.NewIndex(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		engineOpts = append(engineOpts, carrel.WithVectorIndex(index))
	}

	engine, err := carrel.NewEngine(c.String("data"), engineOpts...)
	if err != nil {
		if index != nil {
			index.Close()
		}
		return nil, nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	closer := func() {
		engine.Close()
		if index != nil {
			index.Close()
		}
	}
	return engine, closer, nil
}

// openPersonaService opens just the storage-backed persona service; persona
// management needs no embedding provider.
func openPersonaService(c *cli.Context) (*persona.Service, func(), error) {
	backend, err := badger.OpenBackend(filepath.Join(c.String("data"), "db"), false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	service, err := persona.NewService(badger.NewPersonaRepository(backend))
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return service, func() { backend.Close() }, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() == 0 {
		return fmt.Errorf("at least one file to ingest is required")
	}

	scope, err := parseScope(c.String("scope"))
	if err != nil {
		return err
	}

	blobs, err := fsblob.New(filepath.Join(c.String("data"), "blobs"))
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	engine, closeEngine, err := engineFromFlags(c, carrel.WithBlobStore(blobs))
	if err != nil {
		return err
	}
	defer closeEngine()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	failed := 0
	for _, path := range c.Args().Slice() {
		id, chunks, err := ingestFile(ctx, engine, blobs, scope, path,
			c.String("mime"), c.String("folder"))
		if err != nil {
			fmt.Printf("%s %s: %v\n", red("failed"), path, err)
			failed++
			continue
		}
		fmt.Printf("%s %s (%s, %d chunks)\n", green("indexed"), path, id, chunks)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, c.NArg())
	}
	return nil
}

// ingestFile stages one file in the blob store, records it and processes it
// synchronously. It returns the document ID and the indexed chunk count.
func ingestFile(ctx context.Context, engine *carrel.Engine, blobs *fsblob.Store, scope core.Scope, path, mimeType, folderID string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}

	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}

	key := core.NewID() + filepath.Ext(path)
	if err := blobs.Put(ctx, uploadBucket, key, data); err != nil {
		return "", 0, err
	}

	doc, err := engine.Documents().CreateDocument(ctx, &core.Document{
		Scope:         scope,
		FolderId:      folderID,
		FileName:      filepath.Base(path),
		FileExt:       filepath.Ext(path),
		FileSizeBytes: int64(len(data)),
		MimeType:      mimeType,
		StorageBucket: uploadBucket,
		StorageKey:    key,
	})
	if err != nil {
		return "", 0, err
	}

	if err := engine.Process(ctx, doc.Id); err != nil {
		return doc.Id, 0, err
	}

	processed, err := engine.Documents().GetDocument(ctx, doc.Id)
	if err != nil {
		return doc.Id, 0, err
	}
	return doc.Id, processed.ChunkCount, nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() == 0 {
		return fmt.Errorf("a search query is required")
	}
	query := strings.Join(c.Args().Slice(), " ")

	raw := c.StringSlice("scope")
	scopes := make([]core.Scope, 0, len(raw))
	for _, r := range raw {
		scope, err := parseScope(r)
		if err != nil {
			return err
		}
		scopes = append(scopes, scope)
	}

	engine, closeEngine, err := engineFromFlags(c)
	if err != nil {
		return err
	}
	defer closeEngine()

	matches, err := engine.SearchText(ctx, scopes, query, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	score := color.New(color.FgYellow).SprintfFunc()
	namespace := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Printf("Found %d hits\n", len(matches))
	for i, hit := range matches {
		fmt.Printf("%d: [%s] %s %s#%d\n", i+1, score("%.3f", hit.Score),
			namespace(hit.Namespace), hit.Metadata.DocumentId, hit.Metadata.Sequence)
		fmt.Printf("   %s\n", snippet(hit.Metadata.Text, 160))
	}
	return nil
}

func personasListCommand(c *cli.Context) error {
	ctx := context.Background()

	service, closeService, err := openPersonaService(c)
	if err != nil {
		return err
	}
	defer closeService()

	personas, err := service.List(ctx, c.String("user"))
	if err != nil {
		return fmt.Errorf("failed to list personas: %w", err)
	}

	if len(personas) == 0 {
		fmt.Println("No personas")
		return nil
	}

	active := color.New(color.FgGreen, color.Bold).SprintFunc()
	for _, p := range personas {
		marker := " "
		if p.Active {
			marker = active("*")
		}
		fmt.Printf("%s %s  %s\n", marker, p.Id, p.Name)
	}
	return nil
}

func personaCreateCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() < 2 {
		return fmt.Errorf("a name and a prompt are required")
	}
	name := c.Args().First()
	prompt := strings.Join(c.Args().Tail(), " ")

	service, closeService, err := openPersonaService(c)
	if err != nil {
		return err
	}
	defer closeService()

	created, err := service.Create(ctx, c.String("user"), name, prompt)
	if err != nil {
		return fmt.Errorf("failed to create persona: %w", err)
	}

	fmt.Printf("Created persona %s (%s)\n", created.Name, created.Id)
	return nil
}

func personaActivateCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() != 1 {
		return fmt.Errorf("exactly one persona ID is required")
	}

	service, closeService, err := openPersonaService(c)
	if err != nil {
		return err
	}
	defer closeService()

	if err := service.Activate(ctx, c.String("user"), c.Args().First()); err != nil {
		return fmt.Errorf("failed to activate persona: %w", err)
	}

	fmt.Printf("Activated persona %s\n", c.Args().First())
	return nil
}

func personaDeactivateCommand(c *cli.Context) error {
	ctx := context.Background()

	service, closeService, err := openPersonaService(c)
	if err != nil {
		return err
	}
	defer closeService()

	if err := service.DeactivateAll(ctx, c.String("user")); err != nil {
		return fmt.Errorf("failed to deactivate personas: %w", err)
	}

	fmt.Println("Deactivated all personas")
	return nil
}

func personaDeleteCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() != 1 {
		return fmt.Errorf("exactly one persona ID is required")
	}

	service, closeService, err := openPersonaService(c)
	if err != nil {
		return err
	}
	defer closeService()

	if err := service.Delete(ctx, c.String("user"), c.Args().First()); err != nil {
		return fmt.Errorf("failed to delete persona: %w", err)
	}

	fmt.Printf("Deleted persona %s\n", c.Args().First())
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	engine, closeEngine, err := engineFromFlags(c)
	if err != nil {
		return err
	}
	defer closeEngine()

	fmt.Fprintf(os.Stderr, "Data directory: %s\n", c.String("data"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := engine.NewReindexer(config, os.Stderr).Run(ctx); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

// parseScope turns "system", "user:<id>" or "tenant:<id>" into a core.Scope.
func parseScope(raw string) (core.Scope, error) {
	if raw == "system" {
		return core.SystemScope(), nil
	}
	if id, ok := strings.CutPrefix(raw, "user:"); ok && id != "" {
		return core.UserScope(id), nil
	}
	if id, ok := strings.CutPrefix(raw, "tenant:"); ok && id != "" {
		return core.TenantScope(id), nil
	}
	return core.Scope{}, fmt.Errorf("invalid scope %q: use system, user:<id> or tenant:<id>", raw)
}

// snippet renders chunk text on a single line, truncated to max runes.
func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
