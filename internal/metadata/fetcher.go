// Package metadata resolves off-chain token metadata into gallery entries.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrEmptyURI is returned for tokens without a metadata URI.
	ErrEmptyURI = errors.New("empty metadata uri")
	// ErrBadStatus is returned for non-2xx responses.
	ErrBadStatus = errors.New("unexpected metadata status")
	// ErrInvalidJSON is returned when the body is not a JSON object.
	ErrInvalidJSON = errors.New("invalid metadata json")
	// ErrNoImage is returned when the document has no image.
	ErrNoImage = errors.New("metadata has no image")
)

// DefaultIPFSGateway serves ipfs:// URIs.
const DefaultIPFSGateway = "https://ipfs.io/ipfs/"

// maxDocumentSize bounds the metadata body read.
const maxDocumentSize = 1 << 20

// Document is the subset of the Metaplex off-chain JSON standard the gallery uses.
type Document struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Fetcher downloads metadata documents over HTTP.
type Fetcher struct {
	client  *resty.Client
	gateway string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.SetTimeout(d)
		}
	}
}

// WithGateway sets the gateway used for ipfs:// URIs.
func WithGateway(gateway string) FetcherOption {
	return func(f *Fetcher) {
		if gateway != "" {
			if !strings.HasSuffix(gateway, "/") {
				gateway += "/"
			}
			f.gateway = gateway
		}
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	client := resty.New().
		SetTimeout(15*time.Second).
		SetResponseBodyLimit(maxDocumentSize).
		SetHeader("Accept", "application/json")

	f := &Fetcher{
		client:  client,
		gateway: DefaultIPFSGateway,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ResolveURI rewrites ipfs:// URIs to the gateway. Other URIs are returned unchanged.
func (f *Fetcher) ResolveURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return f.gateway + strings.TrimPrefix(rest, "ipfs/")
	}
	return uri
}

// Fetch downloads and validates the document at uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*Document, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, ErrEmptyURI
	}

	var doc Document
	resp, err := f.client.R().
		SetContext(ctx).
		// Gateways often serve metadata as text/plain or octet-stream.
		ForceContentType("application/json").
		SetResult(&doc).
		Get(f.ResolveURI(uri))
	switch {
	case errors.Is(err, resty.ErrResponseBodyTooLarge):
		return nil, fmt.Errorf("%w: body over %d bytes", ErrInvalidJSON, maxDocumentSize)
	case err != nil && resp != nil && resp.RawResponse != nil && resp.IsSuccess():
		// The request went through; only decoding failed.
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	case err != nil:
		return nil, fmt.Errorf("fetch metadata: %w", err)
	case !resp.IsSuccess():
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode())
	}

	if strings.TrimSpace(doc.Image) == "" {
		return nil, ErrNoImage
	}
	doc.Image = f.ResolveURI(doc.Image)
	return &doc, nil
}
