package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// SettlementArchiver copies a settlement to cold storage and returns the
// object path it was written to.
type SettlementArchiver interface {
	ArchiveSettlement(ctx context.Context, s Settlement) (string, error)
}
