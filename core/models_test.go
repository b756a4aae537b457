package core

import (
	"testing"
)

func TestContentHash(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same hash",
			content: "test content",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := ContentHash(tt.content)
			h2 := ContentHash(tt.content)

			if h1 != h2 {
				t.Errorf("ContentHash() produced different hashes for same content: %s vs %s", h1, h2)
			}
			if len(h1) != 64 {
				t.Errorf("ContentHash() length = %d, want 64 hex characters", len(h1))
			}
		})
	}
}

func TestContentHash_Different(t *testing.T) {
	h1 := ContentHash("content1")
	h2 := ContentHash("content2")

	if h1 == h2 {
		t.Errorf("ContentHash() produced same hash for different content")
	}
}

func TestVectorID(t *testing.T) {
	id1 := VectorID("doc-1", 0)
	id2 := VectorID("doc-1", 0)

	if id1 != id2 {
		t.Errorf("VectorID() produced different IDs for same inputs: %s vs %s", id1, id2)
	}
	if len(id1) != 36 {
		t.Errorf("VectorID() = %q, want canonical UUID form", id1)
	}
}

func TestVectorID_Different(t *testing.T) {
	base := VectorID("doc-1", 0)

	if VectorID("doc-1", 1) == base {
		t.Error("VectorID() produced same ID for different sequence")
	}
	if VectorID("doc-2", 0) == base {
		t.Error("VectorID() produced same ID for different document")
	}
}

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{
			name:   "pending is not terminal",
			status: StatusPending,
			want:   false,
		},
		{
			name:   "processing is not terminal",
			status: StatusProcessing,
			want:   false,
		},
		{
			name:   "completed is terminal",
			status: StatusCompleted,
			want:   true,
		},
		{
			name:   "failed is terminal",
			status: StatusFailed,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Status.Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
