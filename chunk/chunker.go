package chunk

import (
	"fmt"
	"strings"

	"github.com/carrelhq/carrel/core"
)

// Kind selects which splitting policy applies to a document.
type Kind int

const (
	// KindDefault covers content no other policy claims.
	KindDefault Kind = iota
	// KindDocument covers prose formats (pdf, markdown, plain text, word).
	KindDocument
	// KindCode covers source code and config formats.
	KindCode
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindCode:
		return "code"
	default:
		return "default"
	}
}

// Policy sets the chunk size and overlap for one content kind, in runes.
type Policy struct {
	Size    int
	Overlap int
}

// Config carries the per-kind policies and the embedding model limits the
// policies must respect.
type Config struct {
	Document Policy
	Code     Policy
	Default  Policy

	TokenCeiling  int     // embedding model's max tokens per input
	CharsPerToken float64 // estimation ratio, characters per token
	SafetyMargin  float64 // fraction of the ceiling a chunk may use
}

// DefaultConfig returns chunking defaults tuned for common embedding models.
func DefaultConfig() Config {
	return Config{
		Document:      Policy{Size: 1800, Overlap: 200},
		Code:          Policy{Size: 1200, Overlap: 120},
		Default:       Policy{Size: 1500, Overlap: 150},
		TokenCeiling:  8191,
		CharsPerToken: 4.0,
		SafetyMargin:  0.9,
	}
}

// Chunker splits extracted document text into overlapping chunks.
type Chunker struct {
	cfg Config
}

// NewChunker validates cfg and creates a Chunker. Zero config fields fall
// back to defaults. Policies whose estimated token count exceeds the model
// ceiling are rejected here, at construction.
func NewChunker(cfg Config) (*Chunker, error) {
	def := DefaultConfig()
	if cfg.Document == (Policy{}) {
		cfg.Document = def.Document
	}
	if cfg.Code == (Policy{}) {
		cfg.Code = def.Code
	}
	if cfg.Default == (Policy{}) {
		cfg.Default = def.Default
	}
	if cfg.TokenCeiling <= 0 {
		cfg.TokenCeiling = def.TokenCeiling
	}
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = def.CharsPerToken
	}
	if cfg.SafetyMargin <= 0 || cfg.SafetyMargin > 1 {
		cfg.SafetyMargin = def.SafetyMargin
	}

	for _, pk := range []struct {
		kind   Kind
		policy Policy
	}{
		{KindDocument, cfg.Document},
		{KindCode, cfg.Code},
		{KindDefault, cfg.Default},
	} {
		if err := validatePolicy(pk.kind, pk.policy, cfg); err != nil {
			return nil, err
		}
	}

	return &Chunker{cfg: cfg}, nil
}

// validatePolicy checks one policy's shape and its fit under the token ceiling.
func validatePolicy(kind Kind, p Policy, cfg Config) error {
	if p.Size <= 0 {
		return fmt.Errorf("%w: %s size must be positive, got %d", ErrInvalidPolicy, kind, p.Size)
	}
	if p.Overlap < 0 || p.Overlap >= p.Size {
		return fmt.Errorf("%w: %s overlap %d must be in [0, size)", ErrInvalidPolicy, kind, p.Overlap)
	}

	estTokens := float64(p.Size) / cfg.CharsPerToken
	budget := float64(cfg.TokenCeiling) * cfg.SafetyMargin
	if estTokens > budget {
		return fmt.Errorf("%w: %s size %d estimates %.0f tokens, budget is %.0f",
			ErrPolicyExceedsTokenCeiling, kind, p.Size, estTokens, budget)
	}
	return nil
}

// Split cuts text into ordered chunks for one document. Empty text yields no
// chunks; text shorter than the policy size yields exactly one. Offsets are
// rune offsets into text, and every chunk except the last starts Overlap
// runes before the previous one ends.
func (c *Chunker) Split(documentID string, kind Kind, text string) []core.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	p := c.policy(kind)
	step := p.Size - p.Overlap

	var chunks []core.Chunk
	for start := 0; start < len(runes); start += step {
		end := min(start+p.Size, len(runes))
		chunks = append(chunks, core.Chunk{
			DocumentId: documentID,
			Sequence:   len(chunks),
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// policy returns the policy for a kind.
func (c *Chunker) policy(kind Kind) Policy {
	switch kind {
	case KindDocument:
		return c.cfg.Document
	case KindCode:
		return c.cfg.Code
	default:
		return c.cfg.Default
	}
}

// KindFor picks the splitting policy kind from a document's MIME type and
// file extension. Unknown types fall back to the default policy.
func KindFor(mimeType, ext string) Kind {
	mt := strings.ToLower(mimeType)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case "application/pdf", "text/plain", "text/markdown", "text/html",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindDocument
	case "application/json", "application/javascript", "text/javascript",
		"application/x-sh", "application/x-yaml", "text/x-yaml":
		return KindCode
	}
	if strings.HasPrefix(mt, "text/x-") {
		return KindCode
	}

	switch strings.ToLower(ext) {
	case ".go", ".py", ".js", ".ts", ".java", ".c", ".h", ".cpp", ".rs",
		".rb", ".sh", ".sql", ".yaml", ".yml", ".json", ".toml":
		return KindCode
	case ".md", ".txt", ".pdf", ".docx", ".html", ".rtf":
		return KindDocument
	}

	return KindDefault
}
