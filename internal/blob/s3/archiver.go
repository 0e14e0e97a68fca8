package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

// Archiver writes each settlement as a JSON object to
// {prefix}/{yyyy}/{mm}/{market_id}.json. Re-archiving a market overwrites the
// previous object.
type Archiver struct {
	writer domain.BlobWriter
	prefix string
}

// NewArchiver returns an Archiver writing through w under prefix.
func NewArchiver(w domain.BlobWriter, prefix string) *Archiver {
	return &Archiver{writer: w, prefix: strings.Trim(prefix, "/")}
}

// ObjectPath returns the key a settlement is archived under.
func (a *Archiver) ObjectPath(s domain.Settlement) string {
	at := s.SettledAt.UTC()
	name := fmt.Sprintf("%04d/%02d/%s.json", at.Year(), int(at.Month()), s.MarketID)
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// ArchiveSettlement uploads s and returns the object path.
func (a *Archiver) ArchiveSettlement(ctx context.Context, s domain.Settlement) (string, error) {
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal settlement %s: %w", s.MarketID, err)
	}

	key := a.ObjectPath(s)
	if err := a.writer.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %s: %w", s.MarketID, err)
	}
	return key, nil
}

// Compile-time interface check.
var _ domain.SettlementArchiver = (*Archiver)(nil)
