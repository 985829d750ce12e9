package ports

import (
	"context"
	"encoding/json"
	"time"

	"OnionHarvester/internal/domain"
)

// ListingSource yields the paste keys to visit in one harvest cycle.
type ListingSource interface {
	ListKeys(ctx context.Context) ([]string, error)
}

// PasteFetcher downloads raw paste bodies and their page metadata.
type PasteFetcher interface {
	SourceURL(key string) string
	FetchRaw(ctx context.Context, key string) (string, error)
	FetchMeta(ctx context.Context, key string) (domain.PasteMeta, error)
}

// DatasetStore persists the whole dataset as one document.
type DatasetStore interface {
	Check(ctx context.Context) error
	Load(ctx context.Context) (*domain.Dataset, error)
	Save(ctx context.Context, dataset *domain.Dataset) error
	Close() error
}

// KnownClassification returns a classification already recorded for an address.
type KnownClassification func(addr domain.Address) (domain.Classification, bool)

// Annotator turns raw paste text into deduplicated, optionally classified addresses.
type Annotator interface {
	Annotate(ctx context.Context, text string, known KnownClassification) []domain.AnnotatedAddress
}

// Notifier streams harvest digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// ChatMessage is a single chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a chat completion request. ResponseFormat is passed through
// verbatim when set, e.g. {"type":"json_object"}.
type ChatRequest struct {
	Messages       []ChatMessage
	Temperature    float64
	MaxTokens      int
	ResponseFormat json.RawMessage
}

// ChatClient sends prompts to an OpenAI compatible LLM API.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Scheduler controls when harvest cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
