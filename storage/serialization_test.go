package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/core"
)

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name string
		doc  *core.Document
	}{
		{
			name: "minimal document",
			doc: &core.Document{
				Id:         "doc-1",
				Scope:      core.SystemScope(),
				Status:     core.StatusPending,
				UploadedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "completed document with everything",
			doc: &core.Document{
				Id:            "doc-2",
				Scope:         core.UserScope("alice"),
				FolderId:      "folder-9",
				FileName:      "report.pdf",
				FileExt:       ".pdf",
				FileSizeBytes: 123456,
				MimeType:      "application/pdf",
				StorageBucket: "uploads",
				StorageKey:    "alice/report.pdf",
				ContentHash:   core.ContentHash("report body"),
				Status:        core.StatusCompleted,
				ChunkCount:    17,
				ExtractedText: "report body",
				UploadedAt:    now.Add(-time.Hour),
				UpdatedAt:     now,
			},
		},
		{
			name: "failed document",
			doc: &core.Document{
				Id:           "doc-3",
				Scope:        core.TenantScope("acme"),
				Status:       core.StatusFailed,
				ErrorCode:    core.CodeEmptyDocumentText,
				ErrorMessage: "document text is empty",
				UploadedAt:   now,
				UpdatedAt:    now,
			},
		},
		{
			name: "unicode file name and text",
			doc: &core.Document{
				Id:            "doc-4",
				Scope:         core.UserScope("alice"),
				FileName:      "世界 \U0001f30d.txt",
				Status:        core.StatusPending,
				ExtractedText: "Héllo 世界",
				UploadedAt:    now,
				UpdatedAt:     now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalDocument(tt.doc)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalDocument(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.doc.Id, decoded.Id)
			assert.Equal(t, tt.doc.Scope, decoded.Scope)
			assert.Equal(t, tt.doc.FolderId, decoded.FolderId)
			assert.Equal(t, tt.doc.FileName, decoded.FileName)
			assert.Equal(t, tt.doc.ContentHash, decoded.ContentHash)
			assert.Equal(t, tt.doc.Status, decoded.Status)
			assert.Equal(t, tt.doc.ErrorCode, decoded.ErrorCode)
			assert.Equal(t, tt.doc.ChunkCount, decoded.ChunkCount)
			assert.Equal(t, tt.doc.ExtractedText, decoded.ExtractedText)
			assert.True(t, tt.doc.UploadedAt.Equal(decoded.UploadedAt))
			assert.True(t, tt.doc.UpdatedAt.Equal(decoded.UpdatedAt))
		})
	}
}

func TestUnmarshalDocument_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDocument(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestMarshalUnmarshalPersona(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	persona := &core.Persona{
		Id:        "persona-1",
		OwnerId:   "alice",
		Name:      "Pirate",
		Prompt:    "Answer like a pirate. ☠",
		Active:    true,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now,
	}

	data := MarshalPersona(persona)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalPersona(data)
	require.NoError(t, err)
	assert.Equal(t, persona.Id, decoded.Id)
	assert.Equal(t, persona.OwnerId, decoded.OwnerId)
	assert.Equal(t, persona.Name, decoded.Name)
	assert.Equal(t, persona.Prompt, decoded.Prompt)
	assert.True(t, decoded.Active)
	assert.True(t, persona.CreatedAt.Equal(decoded.CreatedAt))
	assert.True(t, persona.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestMarshalUnmarshalUser(t *testing.T) {
	tests := []struct {
		name string
		user *core.User
	}{
		{"with active persona", &core.User{Id: "alice", ActivePersonaId: "persona-1"}},
		{"without active persona", &core.User{Id: "bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalUser(tt.user)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalUser(data)
			require.NoError(t, err)
			assert.Equal(t, tt.user.Id, decoded.Id)
			assert.Equal(t, tt.user.ActivePersonaId, decoded.ActivePersonaId)
		})
	}
}

func TestMarshalUnmarshalFolder(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	folder := &core.Folder{
		Id:        "folder-1",
		OwnerId:   "alice",
		Name:      "Research",
		CreatedAt: now,
	}

	data := MarshalFolder(folder)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalFolder(data)
	require.NoError(t, err)
	assert.Equal(t, folder.Id, decoded.Id)
	assert.Equal(t, folder.OwnerId, decoded.OwnerId)
	assert.Equal(t, folder.Name, decoded.Name)
	assert.True(t, folder.CreatedAt.Equal(decoded.CreatedAt))
}
