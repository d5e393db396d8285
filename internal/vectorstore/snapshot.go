package vectorstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// SnapshotName is the blob name of the persisted index.
const SnapshotName = "index.snap"

const (
	snapshotMagic   = "PRAGIDX1"
	snapshotVersion = 1
	headerSize      = len(snapshotMagic) + 2 + 1 + 4
)

// Compression selects how the snapshot payload is compressed.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

// ParseCompression maps a config value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "zstd":
		return CompressionZSTD, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ErrCorruptSnapshot is returned when a snapshot cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

type snapshotDoc struct {
	Dimension int     `json:"dimension"`
	Metric    string  `json:"metric"`
	Embedder  string  `json:"embedder"`
	Entries   []Entry `json:"entries"`
}

// EncodeSnapshot serializes the full index.
//
// Layout: magic[8] | version u16 | compression u8 | crc32(payload) u32 | payload.
func EncodeSnapshot(ix *Index, c Compression) ([]byte, error) {
	raw, err := json.Marshal(snapshotDoc{
		Dimension: ix.dimension,
		Metric:    MetricCosine,
		Embedder:  ix.embedder,
		Entries:   ix.entries,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	payload, err := compress(raw, c)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, headerSize, headerSize+len(payload))
	copy(buf, snapshotMagic)
	off := len(snapshotMagic)
	binary.LittleEndian.PutUint16(buf[off:], snapshotVersion)
	buf[off+2] = byte(c)
	binary.LittleEndian.PutUint32(buf[off+3:], crc32.ChecksumIEEE(payload))
	return append(buf, payload...), nil
}

// DecodeSnapshot parses data written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Index, error) {
	if len(data) < headerSize || string(data[:len(snapshotMagic)]) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptSnapshot)
	}
	off := len(snapshotMagic)
	if v := binary.LittleEndian.Uint16(data[off:]); v != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, v)
	}
	c := Compression(data[off+2])
	payload := data[headerSize:]
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(data[off+3:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}
	raw, err := decompress(payload, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	var doc snapshotDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if doc.Metric != MetricCosine {
		return nil, fmt.Errorf("%w: metric %q", ErrCorruptSnapshot, doc.Metric)
	}
	for _, e := range doc.Entries {
		if len(e.Vector) != doc.Dimension {
			return nil, fmt.Errorf("%w: entry %s", ErrDimensionMismatch, e.ID)
		}
	}
	return &Index{dimension: doc.Dimension, embedder: doc.Embedder, entries: doc.Entries}, nil
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZSTD:
		return zstdEncoder.EncodeAll(data, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown compression %d", uint8(c))
}

func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZSTD:
		return zstdDecoder.DecodeAll(data, nil)
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	}
	return nil, fmt.Errorf("unknown compression %d", uint8(c))
}
