package snapshot

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType identifies a supported compression algorithm
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeZstd CompressionType = "zstd"
	CompressionTypeLZ4  CompressionType = "lz4"
)

// ParseCompressionType validates an algorithm name from configuration
func ParseCompressionType(s string) (CompressionType, error) {
	switch CompressionType(s) {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeZstd, CompressionTypeLZ4:
		return CompressionType(s), nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", s)
	}
}

// Extension returns the filename suffix for the algorithm, appended to the
// dump artifact name after ".sql".
func (ct CompressionType) Extension() string {
	switch ct {
	case CompressionTypeGzip:
		return ".gz"
	case CompressionTypeZstd:
		return ".zst"
	case CompressionTypeLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// nopWriteCloser passes writes through for the "none" algorithm
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewCompressingWriter wraps w with the requested algorithm. The dump is
// streamed through this writer as mysqldump produces it, so nothing is
// buffered in memory.
func NewCompressingWriter(w io.Writer, algorithm CompressionType, level int) (io.WriteCloser, error) {
	switch algorithm {
	case CompressionTypeNone:
		return nopWriteCloser{w}, nil

	case CompressionTypeGzip:
		writer, err := gzip.NewWriterLevel(w, gzipLevel(level))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return writer, nil

	case CompressionTypeZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return encoder, nil

	case CompressionTypeLZ4:
		writer := lz4.NewWriter(w)
		if level > 6 {
			if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
				return nil, fmt.Errorf("failed to set LZ4 compression level: %w", err)
			}
		}
		return writer, nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// decompressReadCloser couples a decompression reader with any resources it
// must release on close.
type decompressReadCloser struct {
	io.Reader
	close func()
}

func (d decompressReadCloser) Close() error {
	if d.close != nil {
		d.close()
	}
	return nil
}

// NewDecompressingReader wraps r with the requested algorithm for the
// restore path.
func NewDecompressingReader(r io.Reader, algorithm CompressionType) (io.ReadCloser, error) {
	switch algorithm {
	case CompressionTypeNone:
		return decompressReadCloser{Reader: r}, nil

	case CompressionTypeGzip:
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return reader, nil

	case CompressionTypeZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return decompressReadCloser{Reader: decoder, close: decoder.Close}, nil

	case CompressionTypeLZ4:
		return decompressReadCloser{Reader: lz4.NewReader(r)}, nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// gzipLevel clamps a configured level into gzip's valid range
func gzipLevel(level int) int {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		return gzip.DefaultCompression
	}
	return level
}

// zstdLevel maps a 1-9 style level onto zstd's named levels
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 3:
		return zstd.SpeedDefault
	case level <= 6:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
