package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"

	"storyteller-server-go/internal/domain/article"
	"storyteller-server-go/internal/domain/eventbus"
	platformerrors "storyteller-server-go/internal/platform/errors"
	"storyteller-server-go/internal/platform/logging"
	"storyteller-server-go/internal/platform/storage"
)

// Extractor fetches a page and extracts its readable content.
type Extractor interface {
	Extract(ctx context.Context, url string) (article.Article, error)
}

// Synthesizer renders text to a WAV artifact addressed by artifact id.
type Synthesizer interface {
	SynthesizeToFile(ctx context.Context, text, artifactID string) (string, error)
}

// Embedder produces an embedding vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Item is one library listing row.
type Item struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Reference builds the stable artifact reference served to clients.
func Reference(artifactID string) string {
	return "static/" + artifactID + ".wav"
}

// Options wires a Resolver.
type Options struct {
	Store       *Store
	Extractor   Extractor
	Synthesizer Synthesizer
	Embedder    Embedder
	Bus         *eventbus.AsyncEventBus
	// SynthesisLimit caps how many leading characters of extracted text are
	// synthesized; zero means the 1024 default.
	SynthesisLimit int
	Logger         *logging.Logger
}

// Resolver turns URLs into audio artifact references, cache-aware. The cache
// is global per URL; the first resolver becomes the entry's owner.
type Resolver struct {
	store     *Store
	extractor Extractor
	synth     Synthesizer
	embedder  Embedder
	bus       *eventbus.AsyncEventBus
	limit     int
	logger    *logging.Logger
}

// NewResolver validates dependencies and subscribes the embedding warm-up
// handler on the bus.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Store == nil {
		return nil, errors.New("resolver requires a store")
	}
	if opts.Extractor == nil {
		return nil, errors.New("resolver requires an extractor")
	}
	if opts.Synthesizer == nil {
		return nil, errors.New("resolver requires a synthesizer")
	}
	limit := opts.SynthesisLimit
	if limit <= 0 {
		limit = 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	r := &Resolver{
		store:     opts.Store,
		extractor: opts.Extractor,
		synth:     opts.Synthesizer,
		embedder:  opts.Embedder,
		bus:       opts.Bus,
		limit:     limit,
		logger:    logger,
	}

	if r.bus != nil && r.embedder != nil {
		if err := r.bus.Subscribe(eventbus.EventEntryCreated, r.warmEmbedding); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve returns the artifact reference for url, synthesizing on a cache
// miss. Collaborator failures abort the resolution with no row committed;
// losing a concurrent-create race falls back to the winner's entry.
func (r *Resolver) Resolve(ctx context.Context, owner, url string) (string, error) {
	if url == "" {
		return "", platformerrors.New(platformerrors.KindValidation, "library.resolve",
			"url is required")
	}

	var extractedText string

	entry, err := r.store.FindByURL(ctx, url)
	switch {
	case err == nil:
		r.logger.DebugTag("Library", "cache hit for %s", url)
	case errors.Is(err, ErrNotFound):
		entry, extractedText, err = r.synthesize(ctx, owner, url)
		if err != nil {
			return "", err
		}
	default:
		return "", err
	}

	if len(entry.Embedding) == 0 && r.bus != nil && r.embedder != nil {
		// Warm the embedding without blocking the audio response. The
		// extracted text rides along on the miss path; the handler
		// re-extracts on the hit path where no text is at hand.
		r.bus.PublishAsync(eventbus.EventEntryCreated, url, extractedText)
	}

	return Reference(entry.ArtifactID), nil
}

// synthesize runs the miss path: fetch, extract, synthesize, persist.
func (r *Resolver) synthesize(ctx context.Context, owner, url string) (*storage.AudioCacheEntry, string, error) {
	art, err := r.extractor.Extract(ctx, url)
	if err != nil {
		return nil, "", err
	}

	text := truncate(art.Text, r.limit)
	artifactID := uuid.NewString()

	path, err := r.synth.SynthesizeToFile(ctx, text, artifactID)
	if err != nil {
		return nil, "", platformerrors.Wrap(platformerrors.KindSynthesis, "library.resolve",
			"synthesis failed", err)
	}

	entry := &storage.AudioCacheEntry{
		Owner:      owner,
		SourceURL:  url,
		Title:      art.Title,
		ArtifactID: artifactID,
	}
	if err := r.store.Create(ctx, entry); err != nil {
		// All-or-nothing: an uncommitted row must not leave an artifact
		// behind.
		_ = os.Remove(path)
		if errors.Is(err, ErrDuplicateEntry) {
			r.logger.InfoTag("Library", "lost create race for %s, reusing winner", url)
			winner, findErr := r.store.FindByURL(ctx, url)
			if findErr != nil {
				return nil, "", findErr
			}
			return winner, art.Text, nil
		}
		return nil, "", err
	}

	r.logger.InfoTag("Library", "cached %s as %s", url, filepath.Base(path))
	return entry, art.Text, nil
}

// warmEmbedding computes and attaches the entry's embedding once. Runs on
// the bus workers, detached from the originating request.
func (r *Resolver) warmEmbedding(url, text string) {
	ctx := context.Background()

	entry, err := r.store.FindByURL(ctx, url)
	if err != nil {
		r.bus.Publish(eventbus.EventEmbeddingError, url, err)
		return
	}
	if len(entry.Embedding) > 0 {
		return
	}

	if text == "" {
		art, err := r.extractor.Extract(ctx, url)
		if err != nil {
			r.bus.Publish(eventbus.EventEmbeddingError, url, err)
			return
		}
		text = art.Text
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.bus.Publish(eventbus.EventEmbeddingError, url, err)
		return
	}
	if err := r.store.AttachEmbedding(ctx, entry, vec); err != nil {
		r.bus.Publish(eventbus.EventEmbeddingError, url, err)
		return
	}

	r.logger.DebugTag("Library", "embedding warmed for %s", url)
	r.bus.Publish(eventbus.EventEmbeddingAttached, url)
}

// ListForOwner returns the owner's library as title/reference pairs in
// insertion order.
func (r *Resolver) ListForOwner(ctx context.Context, owner string) ([]Item, error) {
	entries, err := r.store.ListForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, Item{
			Title: entry.Title,
			URL:   Reference(entry.ArtifactID),
		})
	}
	return items, nil
}

// truncate keeps the first limit characters of s, never splitting a rune.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
