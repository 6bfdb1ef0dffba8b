// Package middleware holds gin middleware that is independent of the
// prediction domain.
package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize      int      // Responses smaller than this are sent as is
	Level        int      // gzip level, gzip.DefaultCompression when zero
	ContentTypes []string // Content type prefixes worth compressing
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"application/javascript",
			"text/",
		},
	}
}

// Compression gzips response bodies for clients that accept it.
type Compression struct {
	config CompressionConfig
	pool   sync.Pool

	requests   atomic.Int64
	compressed atomic.Int64
	rawBytes   atomic.Int64
	gzipBytes  atomic.Int64
}

// NewCompression creates the middleware. An invalid level falls back to the
// gzip default.
func NewCompression(config CompressionConfig) *Compression {
	if config.Level == 0 || config.Level < gzip.HuffmanOnly || config.Level > gzip.BestCompression {
		config.Level = gzip.DefaultCompression
	}
	if len(config.ContentTypes) == 0 {
		config.ContentTypes = DefaultCompressionConfig().ContentTypes
	}
	cm := &Compression{config: config}
	cm.pool.New = func() any {
		gz, _ := gzip.NewWriterLevel(nil, config.Level)
		return gz
	}
	return cm
}

// Handler returns the gin middleware.
func (cm *Compression) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead || !acceptsGzip(c.Request) {
			c.Next()
			return
		}

		w := &gzipWriter{ResponseWriter: c.Writer, cm: cm}
		c.Writer = w
		defer func() {
			w.finish()
			c.Writer = w.ResponseWriter
		}()
		c.Next()
	}
}

// CompressionStats is a snapshot of the middleware counters.
type CompressionStats struct {
	Requests           int64   `json:"requests"`
	CompressedRequests int64   `json:"compressed_requests"`
	RawBytes           int64   `json:"raw_bytes"`
	CompressedBytes    int64   `json:"compressed_bytes"`
	Ratio              float64 `json:"compression_ratio"`
}

// Stats returns the counters since startup. Ratio covers compressed
// responses only.
func (cm *Compression) Stats() CompressionStats {
	s := CompressionStats{
		Requests:           cm.requests.Load(),
		CompressedRequests: cm.compressed.Load(),
		RawBytes:           cm.rawBytes.Load(),
		CompressedBytes:    cm.gzipBytes.Load(),
	}
	if s.RawBytes > 0 {
		s.Ratio = float64(s.CompressedBytes) / float64(s.RawBytes)
	}
	return s
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(enc) != "gzip" {
			continue
		}
		return strings.ReplaceAll(params, " ", "") != "q=0"
	}
	return false
}

func (cm *Compression) compressible(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

// gzipWriter buffers the body until it reaches MinSize, then switches to
// gzip. Smaller bodies are written through unchanged when the handler ends.
type gzipWriter struct {
	gin.ResponseWriter
	cm *Compression

	buf         []byte
	gz          *gzip.Writer
	raw         int
	passthrough bool
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	switch {
	case w.gz != nil:
		w.raw += len(data)
		return w.gz.Write(data)
	case w.passthrough:
		return w.ResponseWriter.Write(data)
	case !w.eligible():
		w.passthrough = true
		if err := w.flushBuffer(); err != nil {
			return 0, err
		}
		return w.ResponseWriter.Write(data)
	}

	w.buf = append(w.buf, data...)
	if len(w.buf) >= w.cm.config.MinSize {
		if err := w.start(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	} else if !w.passthrough {
		_ = w.flushBuffer()
		w.passthrough = true
	}
	w.ResponseWriter.Flush()
}

func (w *gzipWriter) eligible() bool {
	status := w.Status()
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}
	h := w.Header()
	return h.Get("Content-Encoding") == "" && w.cm.compressible(h.Get("Content-Type"))
}

func (w *gzipWriter) start() error {
	h := w.Header()
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")

	w.gz = w.cm.pool.Get().(*gzip.Writer)
	w.gz.Reset(w.ResponseWriter)
	w.raw = len(w.buf)
	_, err := w.gz.Write(w.buf)
	w.buf = nil
	return err
}

func (w *gzipWriter) flushBuffer() error {
	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.buf)
	w.buf = nil
	return err
}

func (w *gzipWriter) finish() {
	w.cm.requests.Add(1)
	if w.gz == nil {
		_ = w.flushBuffer()
		return
	}

	_ = w.gz.Close()
	w.gz.Reset(nil)
	w.cm.pool.Put(w.gz)
	w.gz = nil

	w.cm.compressed.Add(1)
	w.cm.rawBytes.Add(int64(w.raw))
	w.cm.gzipBytes.Add(int64(w.ResponseWriter.Size()))
}
