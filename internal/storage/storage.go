// Package storage puts uploaded media into object storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrUnavailable is returned while the object store is failing and its breaker is open.
var ErrUnavailable = errors.New("object storage unavailable")

// Object describes a stored blob.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	URL         string
}

// ObjectStore is the minimal blob API the media service needs.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (*Object, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Unconfigured stands in when no bucket is configured outside development.
type Unconfigured struct{}

func (Unconfigured) Put(context.Context, string, string, io.Reader, int64) (*Object, error) {
	return nil, ErrUnavailable
}

func (Unconfigured) Delete(context.Context, string) error { return ErrUnavailable }

func (Unconfigured) URL(string) string { return "" }
