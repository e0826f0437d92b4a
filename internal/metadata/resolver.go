package metadata

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/observability"
)

// DocumentFetcher fetches one metadata document. Implemented by Fetcher.
type DocumentFetcher interface {
	Fetch(ctx context.Context, uri string) (*Document, error)
}

// DefaultConcurrency is the number of concurrent fetches.
const DefaultConcurrency = 8

// Resolver turns owned tokens into gallery entries.
type Resolver struct {
	fetcher     DocumentFetcher
	concurrency int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewResolver creates a Resolver. A non-positive concurrency uses DefaultConcurrency.
func NewResolver(fetcher DocumentFetcher, concurrency int, metrics *observability.Metrics, logger *zap.Logger) *Resolver {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher:     fetcher,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// Resolve fetches the metadata of every token. Tokens whose fetch fails are
// logged and left out; the rest keep the order of tokens.
// Returns the entries and the number of dropped tokens.
func (r *Resolver) Resolve(ctx context.Context, tokens []domain.OwnedToken) ([]domain.GalleryEntry, int) {
	results := make([]*domain.GalleryEntry, len(tokens))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, token := range tokens {
		g.Go(func() error {
			results[i] = r.resolveOne(ctx, token)
			return nil
		})
	}
	g.Wait()

	entries := make([]domain.GalleryEntry, 0, len(tokens))
	for _, e := range results {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, len(tokens) - len(entries)
}

func (r *Resolver) resolveOne(ctx context.Context, token domain.OwnedToken) *domain.GalleryEntry {
	start := time.Now()
	doc, err := r.fetcher.Fetch(ctx, token.URI)
	if r.metrics != nil {
		r.metrics.RecordMetadataFetch(outcome(err), time.Since(start))
	}
	if err != nil {
		r.logger.Warn("skip token metadata",
			zap.String("mint", token.Mint),
			zap.String("uri", token.URI),
			zap.Error(err),
		)
		return nil
	}

	name := doc.Name
	if name == "" {
		name = token.Name
	}
	return &domain.GalleryEntry{Name: name, ImageURL: doc.Image, Mint: token.Mint}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrBadStatus):
		return "bad_status"
	case errors.Is(err, ErrInvalidJSON):
		return "invalid_json"
	case errors.Is(err, ErrNoImage):
		return "no_image"
	case errors.Is(err, ErrEmptyURI):
		return "empty_uri"
	default:
		return "error"
	}
}
