// Package cachestore provides generation-versioned storage for cached HTTP
// responses. A provider manages named stores; exactly one store (the current
// generation) is read and written during an agent lifetime, and stale
// generations are only ever removed wholesale. Entries never expire on
// their own.
package cachestore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a cache entry doesn't exist.
var ErrNotFound = errors.New("cache entry not found")

// Response is the stored payload for one request identity:
// status, headers, and body of the last stored origin response.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

// Clone returns a deep copy of the response. A stored body and a returned
// body must never alias the same slice.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	return &Response{
		Status:  r.Status,
		Headers: headers,
		Body:    body,
	}
}

// Store is a single named generation of cached responses, keyed by the
// request identity produced by Key. Puts overwrite: responses for the same
// key are treated as equivalent, so last write wins.
type Store interface {
	// Name returns the generation name this store was opened under.
	Name() string
	// Match returns the stored response for the key, or ErrNotFound.
	Match(ctx context.Context, key string) (*Response, error)
	// Put stores the response under the key, replacing any previous entry.
	Put(ctx context.Context, key string, resp *Response) error
}

// Provider manages named stores. Open creates the store if it doesn't exist
// yet; Names enumerates every store that holds at least one entry (plus any
// explicitly opened one, backend permitting); Delete removes a whole store
// and all its entries.
type Provider interface {
	Open(ctx context.Context, name string) (Store, error)
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}
