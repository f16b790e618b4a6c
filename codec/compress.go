package codec

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names accepted by Compression and WithCompression.
const (
	CompressionNone   = "none"
	CompressionZstd   = "zstd"
	CompressionLZ4    = "lz4"
	CompressionBrotli = "brotli"
)

// Compressor compresses whole payloads. Implementations must be safe for
// concurrent use.
type Compressor interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Compression returns the compressor registered under name. The empty name and
// "none" return nil, meaning payloads are left as they are.
func Compression(name string) (Compressor, error) { //nolint:ireturn
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CompressionNone:
		return nil, nil //nolint:nilnil
	case CompressionZstd:
		return Zstd(), nil
	case CompressionLZ4:
		return LZ4(), nil
	case CompressionBrotli:
		return Brotli(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

// WithCompression wraps ser so that every payload passes through the named
// compressor. "none" returns ser unchanged.
func WithCompression(ser Serializer, name string) (Serializer, error) { //nolint:ireturn
	comp, err := Compression(name)
	if err != nil {
		return nil, err
	}

	if comp == nil {
		return ser, nil
	}

	return &Compressed{Serializer: ser, Compressor: comp}, nil
}

// Compressed is a Serializer decorator that compresses after serializing and
// decompresses before deserializing.
type Compressed struct {
	Serializer Serializer
	Compressor Compressor
}

var _ Serializer = (*Compressed)(nil)

// Serialize implements Serializer.
func (c *Compressed) Serialize(v any) ([]byte, error) {
	data, err := c.Serializer.Serialize(v)
	if err != nil {
		return nil, err
	}

	out, err := c.Compressor.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", c.Compressor.Name(), err)
	}

	return out, nil
}

// Deserialize implements Serializer.
func (c *Compressed) Deserialize(data []byte, typ reflect.Type) (any, error) {
	raw, err := c.Compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", c.Compressor.Name(), err)
	}

	return c.Serializer.Deserialize(raw, typ)
}

type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

//nolint:gochecknoglobals
var sharedZstd = sync.OnceValues(func() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()

		return nil, err
	}

	return &zstdCompressor{encoder: enc, decoder: dec}, nil
})

// Zstd returns a Zstandard compressor. One encoder/decoder pair is shared by
// the whole process; EncodeAll and DecodeAll are safe for concurrent use.
func Zstd() Compressor { //nolint:ireturn
	return zstdHandle{}
}

type zstdHandle struct{}

func (zstdHandle) Name() string { return CompressionZstd }

func (zstdHandle) Compress(src []byte) ([]byte, error) {
	z, err := sharedZstd()
	if err != nil {
		return nil, err
	}

	return z.encoder.EncodeAll(src, nil), nil
}

func (zstdHandle) Decompress(src []byte) ([]byte, error) {
	z, err := sharedZstd()
	if err != nil {
		return nil, err
	}

	return z.decoder.DecodeAll(src, nil)
}

// LZ4 returns an LZ4 frame compressor.
func LZ4() Compressor { //nolint:ireturn
	return streamCompressor{
		name: CompressionLZ4,
		writer: func(w io.Writer) io.WriteCloser {
			return lz4.NewWriter(w)
		},
		reader: func(r io.Reader) io.Reader {
			return lz4.NewReader(r)
		},
	}
}

// Brotli returns a Brotli compressor at the default quality.
func Brotli() Compressor { //nolint:ireturn
	return streamCompressor{
		name: CompressionBrotli,
		writer: func(w io.Writer) io.WriteCloser {
			return brotli.NewWriterLevel(w, brotli.DefaultCompression)
		},
		reader: func(r io.Reader) io.Reader {
			return brotli.NewReader(r)
		},
	}
}

type streamCompressor struct {
	name   string
	writer func(io.Writer) io.WriteCloser
	reader func(io.Reader) io.Reader
}

func (s streamCompressor) Name() string { return s.name }

func (s streamCompressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := s.writer(&buf)

	if _, err := w.Write(src); err != nil {
		_ = w.Close()

		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (s streamCompressor) Decompress(src []byte) ([]byte, error) {
	return io.ReadAll(s.reader(bytes.NewReader(src)))
}
