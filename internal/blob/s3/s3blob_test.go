package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemWriter() *memWriter {
	return &memWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	m.types[path] = contentType
	return nil
}

type fakePutAPI struct {
	in *s3.PutObjectInput
}

func (f *fakePutAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, nil
}

func sampleSettlement() domain.Settlement {
	return domain.Settlement{
		MarketID:    "m1",
		Result:      domain.SideYes,
		LosingPool:  decimal.NewFromInt(100),
		WinningPool: decimal.NewFromInt(100),
		Payouts: domain.Payouts{
			"A": decimal.NewFromInt(30),
			"B": decimal.NewFromInt(70),
		},
		Transfers: []domain.Transfer{
			{Recipient: "A", Amount: decimal.NewFromInt(30)},
			{Recipient: "B", Amount: decimal.NewFromInt(70)},
		},
		SettledAt: time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC),
	}
}

func TestArchiverObjectPath(t *testing.T) {
	s := sampleSettlement()

	assert.Equal(t, "settlements/2026/03/m1.json", NewArchiver(nil, "settlements").ObjectPath(s))
	assert.Equal(t, "settlements/2026/03/m1.json", NewArchiver(nil, "/settlements/").ObjectPath(s))
	assert.Equal(t, "2026/03/m1.json", NewArchiver(nil, "").ObjectPath(s))
}

func TestArchiveSettlementWritesJSON(t *testing.T) {
	w := newMemWriter()
	a := NewArchiver(w, "settlements")

	key, err := a.ArchiveSettlement(context.Background(), sampleSettlement())
	require.NoError(t, err)
	assert.Equal(t, "settlements/2026/03/m1.json", key)
	assert.Equal(t, "application/json", w.types[key])

	var got struct {
		MarketID  string            `json:"market_id"`
		Result    string            `json:"result"`
		Payouts   map[string]string `json:"payouts"`
		Transfers []struct {
			Recipient string `json:"recipient"`
		} `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(w.objects[key], &got))
	assert.Equal(t, "m1", got.MarketID)
	assert.Equal(t, "yes", got.Result)
	assert.Equal(t, "30", got.Payouts["A"])
	require.Len(t, got.Transfers, 2)
	assert.Equal(t, "A", got.Transfers[0].Recipient)
}

func TestArchiveSettlementPropagatesWriteError(t *testing.T) {
	w := newMemWriter()
	w.err = errors.New("bucket gone")

	_, err := NewArchiver(w, "x").ArchiveSettlement(context.Background(), sampleSettlement())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestWriterPut(t *testing.T) {
	api := &fakePutAPI{}
	w := &Writer{api: api, bucket: "b"}

	require.NoError(t, w.Put(context.Background(), "k", nil, "application/json"))
	assert.Equal(t, "b", aws.ToString(api.in.Bucket))
	assert.Equal(t, "k", aws.ToString(api.in.Key))
	assert.Equal(t, "application/json", aws.ToString(api.in.ContentType))
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", endpointURL("http://localhost:9000", true))
	assert.Equal(t, "https://e2.example.com", endpointURL("e2.example.com", true))
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
}
