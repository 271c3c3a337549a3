package s3blob

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"time"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

const (
	// DefaultSnapshotPrefix is the key prefix used when none is configured.
	DefaultSnapshotPrefix = "snapshots"

	snapshotPageSize = 500
	manifestName     = "manifest.json"
)

// Manifest is written last in a snapshot directory. Its presence marks the
// snapshot as complete.
type Manifest struct {
	Block      uint64    `json:"block"`
	Accounts   int       `json:"accounts"`
	Artworks   int       `json:"artworks"`
	Objects    []string  `json:"objects"`
	ExportedAt time.Time `json:"exported_at"`
}

// Snapshotter exports the committed entity graph as JSONL under
// <prefix>/<block>/.
type Snapshotter struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	store  domain.Reader
	prefix string
}

// NewSnapshotter creates a Snapshotter. reader may be nil, in which case
// completed snapshots are not detected and every call re-exports.
func NewSnapshotter(writer domain.BlobWriter, reader domain.BlobReader, store domain.Reader, prefix string) *Snapshotter {
	if prefix == "" {
		prefix = DefaultSnapshotPrefix
	}
	return &Snapshotter{
		writer: writer,
		reader: reader,
		store:  store,
		prefix: prefix,
	}
}

// Dir returns the object prefix of the snapshot taken at block.
func (s *Snapshotter) Dir(block uint64) string {
	return path.Join(s.prefix, strconv.FormatUint(block, 10))
}

// Export writes accounts.jsonl, artworks.jsonl, market.json and the manifest
// for block. It returns (manifest, false, nil) without writing when a
// complete snapshot for block already exists.
func (s *Snapshotter) Export(ctx context.Context, block uint64) (Manifest, bool, error) {
	dir := s.Dir(block)
	manifestPath := path.Join(dir, manifestName)

	if s.reader != nil {
		ok, err := s.reader.Exists(ctx, manifestPath)
		if err != nil {
			return Manifest{}, false, fmt.Errorf("s3blob: snapshot %d: %w", block, err)
		}
		if ok {
			m, err := s.readManifest(ctx, manifestPath)
			return m, false, err
		}
	}

	accounts, err := collect(ctx, s.store.ListAccounts)
	if err != nil {
		return Manifest{}, false, fmt.Errorf("s3blob: snapshot %d: list accounts: %w", block, err)
	}
	artworks, err := collect(ctx, s.store.ListArtworks)
	if err != nil {
		return Manifest{}, false, fmt.Errorf("s3blob: snapshot %d: list artworks: %w", block, err)
	}
	market, err := s.store.Market(ctx)
	if err != nil {
		return Manifest{}, false, fmt.Errorf("s3blob: snapshot %d: market: %w", block, err)
	}

	m := Manifest{
		Block:    block,
		Accounts: len(accounts),
		Artworks: len(artworks),
	}

	accountsPath := path.Join(dir, "accounts.jsonl")
	data, err := marshalJSONL(accounts)
	if err := s.putJSONL(ctx, accountsPath, data, err); err != nil {
		return Manifest{}, false, err
	}
	artworksPath := path.Join(dir, "artworks.jsonl")
	data, err = marshalJSONL(artworks)
	if err := s.putJSONL(ctx, artworksPath, data, err); err != nil {
		return Manifest{}, false, err
	}
	marketPath := path.Join(dir, "market.json")
	if err := s.putJSON(ctx, marketPath, market); err != nil {
		return Manifest{}, false, err
	}

	m.Objects = []string{accountsPath, artworksPath, marketPath}
	m.ExportedAt = time.Now().UTC()
	if err := s.putJSON(ctx, manifestPath, m); err != nil {
		return Manifest{}, false, err
	}
	return m, true, nil
}

// List returns the manifests of completed snapshots, oldest block first.
func (s *Snapshotter) List(ctx context.Context) ([]Manifest, error) {
	if s.reader == nil {
		return nil, nil
	}
	infos, err := s.reader.List(ctx, s.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: list snapshots: %w", err)
	}
	var out []Manifest
	for _, info := range infos {
		if path.Base(info.Path) != manifestName {
			continue
		}
		m, err := s.readManifest(ctx, info.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Manifest) int { return cmp.Compare(a.Block, b.Block) })
	return out, nil
}

func (s *Snapshotter) readManifest(ctx context.Context, p string) (Manifest, error) {
	rc, err := s.reader.Get(ctx, p)
	if err != nil {
		return Manifest{}, fmt.Errorf("s3blob: read manifest %s: %w", p, err)
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("s3blob: decode manifest %s: %w", p, err)
	}
	return m, nil
}

func (s *Snapshotter) putJSONL(ctx context.Context, p string, data []byte, err error) error {
	if err != nil {
		return fmt.Errorf("s3blob: marshal %s: %w", p, err)
	}
	if int64(len(data)) > MinPartSize {
		err = s.writer.PutMultipart(ctx, p, bytes.NewReader(data), MinPartSize)
	} else {
		err = s.writer.Put(ctx, p, bytes.NewReader(data), "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", p, err)
	}
	return nil
}

func (s *Snapshotter) putJSON(ctx context.Context, p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal %s: %w", p, err)
	}
	if err := s.writer.Put(ctx, p, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", p, err)
	}
	return nil
}

// collect pages through a listing until a short page comes back.
func collect[T any](ctx context.Context, list func(context.Context, domain.ListOpts) ([]T, error)) ([]T, error) {
	var out []T
	for offset := 0; ; offset += snapshotPageSize {
		page, err := list(ctx, domain.ListOpts{Limit: snapshotPageSize, Offset: offset})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				break
			}
			return nil, err
		}
		out = append(out, page...)
		if len(page) < snapshotPageSize {
			break
		}
	}
	return out, nil
}

// marshalJSONL serializes a slice of values into newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
