package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/storage"
)

func TestFolderBasics(t *testing.T) {
	_, _, folderRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	folder, err := folderRepo.CreateFolder(ctx, &core.Folder{OwnerId: "alice", Name: "Research"})
	if err != nil {
		t.Fatalf("Failed to create folder: %v", err)
	}
	if folder.Id == "" {
		t.Fatal("Expected generated ID")
	}
	if folder.CreatedAt.IsZero() {
		t.Fatal("Expected CreatedAt to be set")
	}

	retrieved, err := folderRepo.GetFolder(ctx, folder.Id)
	if err != nil {
		t.Fatalf("Failed to get folder: %v", err)
	}
	if retrieved.Name != "Research" {
		t.Fatalf("Expected 'Research', got %q", retrieved.Name)
	}

	_, err = folderRepo.GetFolder(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	_, err = folderRepo.CreateFolder(ctx, &core.Folder{OwnerId: "alice"})
	if !errors.Is(err, core.ErrEmptyFolderName) {
		t.Fatalf("Expected ErrEmptyFolderName, got %v", err)
	}
}

func TestListFoldersByOwner(t *testing.T) {
	_, _, folderRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	for _, name := range []string{"Inbox", "Archive"} {
		if _, err := folderRepo.CreateFolder(ctx, &core.Folder{OwnerId: "alice", Name: name}); err != nil {
			t.Fatalf("Failed to create folder %q: %v", name, err)
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := folderRepo.CreateFolder(ctx, &core.Folder{OwnerId: "bob", Name: "Other"}); err != nil {
		t.Fatalf("Failed to create bob's folder: %v", err)
	}

	folders, err := folderRepo.ListFoldersByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to list folders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("Expected 2 folders, got %d", len(folders))
	}
	if folders[0].Name != "Inbox" || folders[1].Name != "Archive" {
		t.Fatalf("Expected creation order, got %q then %q", folders[0].Name, folders[1].Name)
	}
}

func TestDeleteFolderDetachesDocuments(t *testing.T) {
	docRepo, _, folderRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	folder, err := folderRepo.CreateFolder(ctx, &core.Folder{OwnerId: "alice", Name: "Doomed"})
	if err != nil {
		t.Fatalf("Failed to create folder: %v", err)
	}

	inFolder, err := docRepo.CreateDocument(ctx, &core.Document{
		Scope:    core.UserScope("alice"),
		FolderId: folder.Id,
		FileName: "inside.txt",
	})
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}
	outside, err := docRepo.CreateDocument(ctx, &core.Document{
		Scope:    core.UserScope("alice"),
		FileName: "outside.txt",
	})
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	if err := folderRepo.DeleteFolder(ctx, folder.Id); err != nil {
		t.Fatalf("Failed to delete folder: %v", err)
	}

	_, err = folderRepo.GetFolder(ctx, folder.Id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}

	// The attached document survives, detached.
	detached, err := docRepo.GetDocument(ctx, inFolder.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if detached.FolderId != "" {
		t.Fatalf("Expected document detached, got folder %q", detached.FolderId)
	}

	unrelated, err := docRepo.GetDocument(ctx, outside.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if unrelated.FolderId != "" {
		t.Fatalf("Unrelated document gained folder %q", unrelated.FolderId)
	}

	err = folderRepo.DeleteFolder(ctx, folder.Id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on second delete, got %v", err)
	}
}
