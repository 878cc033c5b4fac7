package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// codec names a compression wrapper recognized by suffix.
type codec string

const (
	codecNone codec = ""
	codecGzip codec = ".gz"
	codecZstd codec = ".zst"
	codecLZ4  codec = ".lz4"
)

func splitCompression(name string) (string, codec) {
	lower := strings.ToLower(name)
	for _, c := range []codec{codecGzip, codecZstd, codecLZ4} {
		if strings.HasSuffix(lower, string(c)) {
			return name[:len(name)-len(c)], c
		}
	}
	return name, codecNone
}

// zstdDecoders pools decoders; klauspost decoders are built for reuse.
var zstdDecoders = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return d
	},
}

// ReadFile reads path, decoding a .gz, .zst or .lz4 wrapper if present.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	_, c := splitCompression(path)
	out, err := decode(c, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s source %s: %w", strings.TrimPrefix(string(c), "."), path, err)
	}
	return out, nil
}

func decode(c codec, data []byte) ([]byte, error) {
	switch c {
	case codecGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case codecZstd:
		d := zstdDecoders.Get().(*zstd.Decoder)
		defer zstdDecoders.Put(d)
		return d.DecodeAll(data, nil)
	case codecLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return data, nil
	}
}
