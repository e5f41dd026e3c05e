package middleware

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionLevel is shared by all encoders. It is a gzip level, mapped to
// the closest zstd preset for zstd.
const CompressionLevel = 5

// compressibleTypes are the content types worth compressing here: the plain
// text bodies of the handlers and the metrics exposition.
var compressibleTypes = []string{
	"text/plain",
	"text/html",
	"application/json",
	"application/openmetrics-text",
}

// Compress negotiates gzip, br and zstd from Accept-Encoding.
//
// It is chi's Compressor with its encoders swapped for klauspost's gzip and
// zstd and andybalholm's brotli. Encoders registered later take precedence
// when a client accepts several, so zstd wins over br over gzip.
func Compress() func(http.Handler) http.Handler {
	c := chimiddleware.NewCompressor(CompressionLevel, compressibleTypes...)

	c.SetEncoder("gzip", func(w io.Writer, level int) io.Writer {
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil
		}
		return gw
	})
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	c.SetEncoder("zstd", func(w io.Writer, level int) io.Writer {
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil
		}
		return zw
	})

	return c.Handler
}
