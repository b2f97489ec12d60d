package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"bepview/internal/graph"
	"bepview/internal/transport"
)

// Artifact names as listed by the manifest endpoint.
const (
	NameSummary       = "summary"
	NameGraph         = "graph"
	NameResourceUsage = "resource_usage"
)

// Manifest maps artifact name to its retrieval location. It is the one
// indirection between a completed upload and the artifact bodies, which
// live in an independent store behind presigned URLs.
type Manifest struct {
	FileID    string
	Locations map[string]string
}

// FetchError records one artifact that could not be retrieved. Partial
// sets are acceptable; the caller renders what succeeded.
type FetchError struct {
	Name     string
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch artifact %s from %s: %v", e.Name, e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves manifest-located artifacts. Bodies are cached in an
// LRU keyed by location URL so a chat-triggered refresh or a reopened
// viewer does not re-download unchanged payloads.
type Fetcher struct {
	tc     *transport.Client
	cache  *lru.Cache[string, []byte]
	logger *zap.Logger
}

const fetchCacheSize = 64

func NewFetcher(tc *transport.Client, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, []byte](fetchCacheSize)
	if err != nil {
		return nil, err
	}
	return &Fetcher{tc: tc, cache: cache, logger: logger}, nil
}

// FetchSet retrieves every artifact the manifest names, in parallel, and
// assembles whatever succeeded into a Set. Per-artifact failures come
// back as *FetchError values alongside the (possibly partial) set.
func (f *Fetcher) FetchSet(ctx context.Context, manifest Manifest) (*Set, []error) {
	set := &Set{FileID: manifest.FileID, FetchedAt: time.Now()}

	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup

	fetch := func(name string, apply func([]byte) error) {
		location := strings.TrimSpace(manifest.Locations[name])
		if location == "" {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := f.fetchBody(ctx, location)
			if err == nil {
				err = apply(raw)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, &FetchError{Name: name, Location: location, Err: err})
				mu.Unlock()
				f.logger.Warn("artifact fetch failed",
					zap.String("artifact", name),
					zap.Error(err))
			}
		}()
	}

	fetch(NameSummary, func(raw []byte) error {
		var s Summary
		if err := decodeJSON(raw, &s); err != nil {
			return err
		}
		mu.Lock()
		set.Summary = &s
		mu.Unlock()
		return nil
	})
	fetch(NameGraph, func(raw []byte) error {
		var g graph.Graph
		if err := decodeJSON(raw, &g); err != nil {
			return err
		}
		if _, err := graph.Validate(&g); err != nil {
			return err
		}
		mu.Lock()
		set.Graph = &g
		mu.Unlock()
		return nil
	})
	fetch(NameResourceUsage, func(raw []byte) error {
		var r ResourceUsage
		if err := decodeJSON(raw, &r); err != nil {
			return err
		}
		if err := r.Validate(); err != nil {
			return err
		}
		mu.Lock()
		set.ResourceUsage = &r
		mu.Unlock()
		return nil
	})

	wg.Wait()
	return set, errs
}

func (f *Fetcher) fetchBody(ctx context.Context, location string) ([]byte, error) {
	if raw, ok := f.cache.Get(location); ok {
		return raw, nil
	}
	var raw json.RawMessage
	if err := f.tc.GetJSON(ctx, location, &raw); err != nil {
		return nil, err
	}
	f.cache.Add(location, raw)
	return raw, nil
}

func decodeJSON(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}
