package jsonschema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Retriever fetches the JSON document named by an absolute URI, used when
// the registry encounters a $ref it was not given a resource for up front.
// The default NopRetriever refuses everything; callers wire in FileRetriever
// or HTTPRetriever (or their own) via WithRetriever.
type Retriever interface {
	Retrieve(uri string) (any, error)
}

// AsyncRetriever is the context-aware counterpart for callers building a
// Validator inside a request path that needs to respect cancellation while
// a remote $schema or $ref target is fetched.
type AsyncRetriever interface {
	RetrieveContext(ctx context.Context, uri string) (any, error)
}

// NopRetriever refuses every URI; this is the zero-value default so schema
// compilation never silently reaches the network.
type NopRetriever struct{}

func (NopRetriever) Retrieve(uri string) (any, error) {
	return nil, fmt.Errorf("%w: %s: no retriever configured", ErrRetrieverFailure, uri)
}

// FileRetriever resolves file:// URIs and bare filesystem paths against a
// root directory, grounded on the teacher's Loaders["file"] entry.
type FileRetriever struct {
	Root string
}

func (r FileRetriever) Retrieve(uri string) (any, error) {
	path := uri
	if scheme := getURLScheme(uri); scheme == "file" {
		path = uri[len("file://"):]
	}
	if r.Root != "" {
		path = r.Root + "/" + path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRetrieverFailure, uri, err)
	}
	return decodeJSON(data)
}

// HTTPRetriever fetches http/https URIs with a bounded timeout, grounded on
// the teacher's setupLoaders default HTTP loader.
type HTTPRetriever struct {
	Client *http.Client
}

func NewHTTPRetriever() HTTPRetriever {
	return HTTPRetriever{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (r HTTPRetriever) Retrieve(uri string) (any, error) {
	return r.RetrieveContext(context.Background(), uri)
}

func (r HTTPRetriever) RetrieveContext(ctx context.Context, uri string) (any, error) {
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRetrieverFailure, uri, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRetrieverFailure, uri, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrRetrieverFailure, uri, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRetrieverFailure, uri, err)
	}
	return decodeJSON(data)
}

// MapRetriever serves a fixed set of documents by URI, used in tests and for
// users who've already loaded every schema they need into memory.
type MapRetriever map[string]any

func (m MapRetriever) Retrieve(uri string) (any, error) {
	doc, ok := m[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s: not in map", ErrRetrieverFailure, uri)
	}
	return doc, nil
}
