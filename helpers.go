package vidtube

import (
	"bytes"
	"context"
	"io"
)

// ByteFetchFunc is a fetch operation that returns raw bytes.
type ByteFetchFunc func(ctx context.Context) ([]byte, error)

// FromBytes adapts a ByteFetchFunc into a Fetcher. The ETag of the result is
// the content hash, so Revalidate can tell an unchanged payload apart.
func FromBytes(fn ByteFetchFunc) Fetcher {
	return &byteFetcherAdapter{fetchFn: fn}
}

type byteFetcherAdapter struct {
	fetchFn ByteFetchFunc
}

func (a *byteFetcherAdapter) Fetch(ctx context.Context, oldMetadata *Metadata) (*FetchResult, error) {
	data, err := a.fetchFn(ctx)
	if err != nil {
		return nil, err
	}
	return &FetchResult{
		Body:     io.NopCloser(bytes.NewReader(data)),
		Metadata: &Metadata{ETag: ETagOf(data)},
	}, nil
}

// FetcherFunc adapts an ordinary function into a Fetcher.
type FetcherFunc func(ctx context.Context, oldMetadata *Metadata) (*FetchResult, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, oldMetadata *Metadata) (*FetchResult, error) {
	return f(ctx, oldMetadata)
}
