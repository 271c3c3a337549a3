package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/store/memory"
)

// bucket is an in-memory BlobWriter and BlobReader.
type bucket struct {
	objects    map[string][]byte
	types      map[string]string
	multiparts int
}

func newBucket() *bucket {
	return &bucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *bucket) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.objects[path] = raw
	b.types[path] = contentType
	return nil
}

func (b *bucket) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.multiparts++
	b.objects[path] = raw
	return nil
}

func (b *bucket) Get(_ context.Context, path string) (io.ReadCloser, error) {
	raw, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *bucket) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, raw := range b.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(raw))})
		}
	}
	return out, nil
}

func (b *bucket) Exists(_ context.Context, path string) (bool, error) {
	_, ok := b.objects[path]
	return ok, nil
}

func seedStore(t *testing.T, accounts, artworks int) *memory.Store {
	t.Helper()
	store := memory.New(domain.DefaultMarketDefaults())
	err := store.Atomic(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for i := 0; i < accounts; i++ {
			if _, err := tx.Accounts().GetOrCreate(ctx, domain.AccountID(fmt.Sprintf("0x%040x", i+1))); err != nil {
				return err
			}
		}
		for i := 0; i < artworks; i++ {
			a := domain.Artwork{
				ID:     domain.ArtworkID(fmt.Sprintf("%d", i+1)),
				Owner:  domain.AccountID(fmt.Sprintf("0x%040x", 1)),
				Status: domain.ArtworkCreated,
			}
			if err := tx.Artworks().Put(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return store
}

func countLines(t *testing.T, raw []byte) int {
	t.Helper()
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var v map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &v))
		n++
	}
	require.NoError(t, sc.Err())
	return n
}

func TestSnapshotExport(t *testing.T) {
	ctx := context.Background()
	b := newBucket()
	snap := NewSnapshotter(b, b, seedStore(t, 3, 2), "snaps")

	m, wrote, err := snap.Export(ctx, 1234)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, uint64(1234), m.Block)
	assert.Equal(t, 3, m.Accounts)
	assert.Equal(t, 2, m.Artworks)

	require.Contains(t, b.objects, "snaps/1234/accounts.jsonl")
	require.Contains(t, b.objects, "snaps/1234/artworks.jsonl")
	require.Contains(t, b.objects, "snaps/1234/market.json")
	require.Contains(t, b.objects, "snaps/1234/manifest.json")
	assert.Equal(t, 3, countLines(t, b.objects["snaps/1234/accounts.jsonl"]))
	assert.Equal(t, 2, countLines(t, b.objects["snaps/1234/artworks.jsonl"]))
	assert.Equal(t, "application/x-ndjson", b.types["snaps/1234/accounts.jsonl"])

	var market domain.Market
	require.NoError(t, json.Unmarshal(b.objects["snaps/1234/market.json"], &market))
	assert.Equal(t, int64(10), market.PlatformPrimaryFee.Int64())
}

func TestSnapshotExportSkipsCompleted(t *testing.T) {
	ctx := context.Background()
	b := newBucket()
	snap := NewSnapshotter(b, b, seedStore(t, 1, 1), "")

	_, wrote, err := snap.Export(ctx, 7)
	require.NoError(t, err)
	require.True(t, wrote)

	delete(b.objects, "snapshots/7/accounts.jsonl")
	m, wrote, err := snap.Export(ctx, 7)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, m.Accounts)
	assert.NotContains(t, b.objects, "snapshots/7/accounts.jsonl")
}

func TestSnapshotPagesThroughStore(t *testing.T) {
	ctx := context.Background()
	b := newBucket()
	snap := NewSnapshotter(b, nil, seedStore(t, snapshotPageSize+5, 0), "p")

	m, wrote, err := snap.Export(ctx, 1)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, snapshotPageSize+5, m.Accounts)
	assert.Equal(t, snapshotPageSize+5, countLines(t, b.objects["p/1/accounts.jsonl"]))
}

func TestSnapshotList(t *testing.T) {
	ctx := context.Background()
	b := newBucket()
	snap := NewSnapshotter(b, b, seedStore(t, 1, 0), "s")

	for _, block := range []uint64{30, 10, 20} {
		_, _, err := snap.Export(ctx, block)
		require.NoError(t, err)
	}
	ms, err := snap.List(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, []uint64{10, 20, 30}, []uint64{ms[0].Block, ms[1].Block, ms[2].Block})

	none, err := NewSnapshotter(b, nil, nil, "s").List(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

type failingWriter struct{ bucket }

func (f *failingWriter) Put(context.Context, string, io.Reader, string) error {
	return errors.New("boom")
}

func TestSnapshotUploadError(t *testing.T) {
	_, _, err := NewSnapshotter(&failingWriter{}, nil, seedStore(t, 1, 1), "x").Export(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x/1/accounts.jsonl")
}

func TestMarshalJSONL(t *testing.T) {
	raw, err := marshalJSONL([]map[string]int{{"a": 1}, {"b": 2}})
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", string(raw))

	empty, err := marshalJSONL([]int(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("http://minio:9000", true))
}

type statusErr struct{ code int }

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) HTTPStatusCode() int { return e.code }

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("wrap: %w", &types.NotFound{})))
	assert.True(t, isNotFound(statusErr{code: 404}))
	assert.False(t, isNotFound(statusErr{code: 500}))
	assert.False(t, isNotFound(errors.New("other")))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/x-ndjson", contentTypeFor("a/b.jsonl"))
	assert.Equal(t, "application/json", contentTypeFor("a/market.json"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("a/blob"))
}
