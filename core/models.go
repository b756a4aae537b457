package core

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for domain records.
func NewID() string {
	return uuid.NewString()
}

// ContentHash returns the BLAKE2b-256 hex digest of text.
// Identical text always yields the same hash, which is what makes
// re-ingesting the same file a no-op within a scope.
func ContentHash(text string) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// vectorIDSpace is the fixed UUIDv5 namespace for chunk vector IDs.
var vectorIDSpace = uuid.MustParse("b9c1f3a0-4c10-4fbb-9c3a-6f2f6b1f2d7e")

// VectorID returns the vector store ID for one chunk of a document.
// The same (documentID, sequence) pair always produces the same UUID, so
// re-processing a document overwrites its vectors in place instead of
// duplicating them.
func VectorID(documentID string, sequence int) string {
	return uuid.NewSHA1(vectorIDSpace, []byte(documentID+":"+strconv.Itoa(sequence))).String()
}

// Status is the ingestion lifecycle state of a document.
type Status string

const (
	// StatusPending marks a document accepted but not yet processed.
	StatusPending Status = "pending"
	// StatusProcessing marks a document currently being ingested.
	StatusProcessing Status = "processing"
	// StatusCompleted marks a document fully chunked, embedded and indexed.
	StatusCompleted Status = "completed"
	// StatusFailed marks a document whose ingestion failed; ErrorCode says why.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is an end state. Terminal documents
// change again only through explicit deletion or forced re-indexing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is the durable record of one uploaded file and its journey
// through ingestion.
type Document struct {
	Id            string
	Scope         Scope
	FolderId      string // optional grouping; has no effect on isolation
	FileName      string
	FileExt       string
	FileSizeBytes int64
	MimeType      string
	StorageBucket string
	StorageKey    string
	ContentHash   string // set once extracted text is known
	Status        Status
	ErrorCode     ErrorCode // set only while Status is failed
	ErrorMessage  string    // human-readable companion to ErrorCode
	ChunkCount    int       // chunks indexed for this document; >= 1 once completed
	ExtractedText string    // text captured at upload; empty means extract from the blob
	UploadedAt    time.Time
	UpdatedAt     time.Time
}

// Folder groups documents for presentation. Folders carry no isolation
// semantics of their own.
type Folder struct {
	Id        string
	OwnerId   string
	Name      string
	CreatedAt time.Time
}

// Chunk is one contiguous slice of a document's extracted text.
type Chunk struct {
	DocumentId string
	Sequence   int // position within the document, starting at 0
	Text       string
	Start      int // rune offset of the first rune in the source text
	End        int // rune offset one past the last rune
}

// Persona is a user-authored system prompt that can be activated to steer
// the assistant.
type Persona struct {
	Id        string
	OwnerId   string
	Name      string
	Prompt    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User carries the fields prompt resolution needs. Authentication and
// profile data live outside this module.
type User struct {
	Id              string
	ActivePersonaId string // empty when no persona is active
}
