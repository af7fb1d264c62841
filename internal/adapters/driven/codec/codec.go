// Package codec provides the history compaction codecs.
package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
)

// Ensure codecs implement the interface.
var (
	_ driven.CompactionCodec = (*Zstd)(nil)
	_ driven.CompactionCodec = S2{}
)

// New returns the codec for name. CodecNone returns nil, which disables
// compaction.
func New(name domain.CodecName) (driven.CompactionCodec, error) {
	switch name {
	case domain.CodecNone, "":
		return nil, nil
	case domain.CodecZstd:
		z, err := NewZstd()
		if err != nil {
			return nil, err
		}
		return z, nil
	case domain.CodecS2:
		return S2{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", domain.ErrInvalidInput, name)
	}
}

// Zstd compresses with zstandard. One encoder and one decoder are shared;
// EncodeAll and DecodeAll are safe for concurrent use.
type Zstd struct {
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

// NewZstd creates a zstd codec.
func NewZstd() (*Zstd, error) {
	z := &Zstd{}
	if err := z.init(); err != nil {
		return nil, err
	}
	return z, nil
}

func (z *Zstd) init() error {
	z.once.Do(func() {
		z.enc, z.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if z.err != nil {
			return
		}
		z.dec, z.err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return z.err
}

// Name returns "zstd".
func (z *Zstd) Name() string { return string(domain.CodecZstd) }

// Compress returns the zstd frame of src.
func (z *Zstd) Compress(src []byte) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(src, nil), nil
}

// Decompress reverses Compress.
func (z *Zstd) Decompress(src []byte) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, err
	}
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// Close releases the decoder's goroutines.
func (z *Zstd) Close() {
	if z.dec != nil {
		z.dec.Close()
	}
}

// S2 compresses with S2, a faster Snappy-compatible format.
type S2 struct{}

// Name returns "s2".
func (S2) Name() string { return string(domain.CodecS2) }

// Compress returns the S2 block of src.
func (S2) Compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

// Decompress reverses Compress.
func (S2) Decompress(src []byte) ([]byte, error) {
	out, err := s2.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("s2 decode: %w", err)
	}
	return out, nil
}
