package tiler

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

// ErrNoTiles is returned when an archive would contain no tiles.
var ErrNoTiles = errors.New("no tiles to write")

// PMTiles v3 constants.
const (
	headerLen       = 127
	compressionGzip = 2
	tileTypeMVT     = 1
)

// ArchiveOptions controls WriteArchive.
type ArchiveOptions struct {
	Name    string
	MinZoom int
	MaxZoom int
}

type archiveEntry struct {
	id     uint64
	offset uint64
	data   []byte
}

// WriteArchive renders every tile touched by sources between MinZoom and
// MaxZoom and writes them to w as a single-directory PMTiles v3 archive.
func WriteArchive(w io.Writer, sources map[string]*geojson.FeatureCollection, opts ArchiveOptions) error {
	minZoom, maxZoom := clampZoom(opts.MinZoom), clampZoom(opts.MaxZoom)
	if minZoom > maxZoom {
		return fmt.Errorf("min zoom %d above max zoom %d", minZoom, maxZoom)
	}

	b, ok := bounds(sources)
	if !ok {
		return ErrNoTiles
	}

	var entries []archiveEntry
	for z := minZoom; z <= maxZoom; z++ {
		for _, t := range TilesInBound(b, maptile.Zoom(z)) {
			data, err := EncodeTile(sources, t)
			if err != nil {
				return err
			}
			if data == nil {
				continue
			}
			entries = append(entries, archiveEntry{id: TileID(t), data: data})
		}
	}
	if len(entries) == 0 {
		return ErrNoTiles
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	var tileData uint64
	for i := range entries {
		entries[i].offset = tileData
		tileData += uint64(len(entries[i].data))
	}

	dir, err := gzipBytes(directory(entries))
	if err != nil {
		return fmt.Errorf("encoding directory: %w", err)
	}
	meta, err := json.Marshal(map[string]any{
		"name":    opts.Name,
		"format":  "pbf",
		"minzoom": minZoom,
		"maxzoom": maxZoom,
		"vector_layers": func() []map[string]string {
			layers := make([]map[string]string, 0, len(sources))
			for _, id := range sortedIDs(sources) {
				layers = append(layers, map[string]string{"id": id})
			}
			return layers
		}(),
	})
	if err != nil {
		return err
	}
	if meta, err = gzipBytes(meta); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	h := header{
		rootOffset:     headerLen,
		rootLength:     uint64(len(dir)),
		metadataOffset: headerLen + uint64(len(dir)),
		metadataLength: uint64(len(meta)),
		tileCount:      uint64(len(entries)),
		tileLength:     tileData,
		minZoom:        uint8(minZoom),
		maxZoom:        uint8(maxZoom),
		bound:          [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
	}
	h.tileOffset = h.metadataOffset + h.metadataLength

	for _, chunk := range [][]byte{h.bytes(), dir, meta} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if _, err := w.Write(e.data); err != nil {
			return err
		}
	}
	return nil
}

func clampZoom(z int) int {
	if z < 0 {
		return 0
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// TileID returns the position of t on the Hilbert curve that orders every
// tile of every zoom level.
func TileID(t maptile.Tile) uint64 {
	z := uint64(t.Z)
	x, y := uint64(t.X), uint64(t.Y)
	id := ((uint64(1) << (2 * z)) - 1) / 3

	n := uint64(1) << z
	var d uint64
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry uint64
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
	}
	return id + d
}

// directory encodes the root directory: entry count, then tile id deltas,
// run lengths, lengths and offsets as uvarint columns.
func directory(entries []archiveEntry) []byte {
	var buf []byte
	buf = binary.AppendUvarint(buf, uint64(len(entries)))

	var last uint64
	for _, e := range entries {
		buf = binary.AppendUvarint(buf, e.id-last)
		last = e.id
	}
	for range entries {
		buf = binary.AppendUvarint(buf, 1)
	}
	for _, e := range entries {
		buf = binary.AppendUvarint(buf, uint64(len(e.data)))
	}
	for i, e := range entries {
		if i > 0 && e.offset == entries[i-1].offset+uint64(len(entries[i-1].data)) {
			buf = binary.AppendUvarint(buf, 0)
			continue
		}
		buf = binary.AppendUvarint(buf, e.offset+1)
	}
	return buf
}

type header struct {
	rootOffset, rootLength         uint64
	metadataOffset, metadataLength uint64
	tileOffset, tileLength         uint64
	tileCount                      uint64
	minZoom, maxZoom               uint8
	bound                          [4]float64
}

func (h header) bytes() []byte {
	b := make([]byte, headerLen)
	copy(b, "PMTiles")
	b[7] = 3

	le := binary.LittleEndian
	for i, v := range []uint64{
		h.rootOffset, h.rootLength,
		h.metadataOffset, h.metadataLength,
		0, 0, // leaf directories
		h.tileOffset, h.tileLength,
		h.tileCount, h.tileCount, h.tileCount,
	} {
		le.PutUint64(b[8+8*i:], v)
	}

	b[96] = 1 // clustered
	b[97] = compressionGzip
	b[98] = compressionGzip
	b[99] = tileTypeMVT
	b[100] = h.minZoom
	b[101] = h.maxZoom
	for i, v := range h.bound {
		le.PutUint32(b[102+4*i:], uint32(int32(v*1e7)))
	}
	b[118] = h.minZoom
	le.PutUint32(b[119:], uint32(int32((h.bound[0]+h.bound[2])/2*1e7)))
	le.PutUint32(b[123:], uint32(int32((h.bound[1]+h.bound[3])/2*1e7)))
	return b
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
