package vidtube

import (
	"context"
	"io"
)

// nullStore is a Null Object implementation of the Store interface.
// It stands in for an unconfigured cold tier so the cache never nil-checks.
type nullStore struct{}

func newNullStore() Store {
	return &nullStore{}
}

// GetStream always returns ErrNotFound.
func (ns *nullStore) GetStream(ctx context.Context, key string) (io.ReadCloser, *Metadata, error) {
	return nil, nil, ErrNotFound
}

// SetWithWriter returns a writer that discards everything.
func (ns *nullStore) SetWithWriter(ctx context.Context, key string, metadata *Metadata) (io.WriteCloser, error) {
	return nopWriteCloser{io.Discard}, nil
}

// Delete does nothing.
func (ns *nullStore) Delete(ctx context.Context, key string) error {
	return nil
}

// DeletePrefix does nothing.
func (ns *nullStore) DeletePrefix(ctx context.Context, prefix string) error {
	return nil
}

// Stat always returns ErrNotFound.
func (ns *nullStore) Stat(ctx context.Context, key string) (*Metadata, error) {
	return nil, ErrNotFound
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
