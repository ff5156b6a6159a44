package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// maxDecompressedBytes caps decoded bodies. Page summaries are far below this.
const maxDecompressedBytes = 8 << 20

// RequestDecompressionMiddleware decodes request bodies sent with
// Content-Encoding gzip or br so handlers always see plain JSON.
func RequestDecompressionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		enc := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Encoding")))
		if enc == "" || enc == "identity" {
			c.Next()
			return
		}

		var reader io.Reader
		switch {
		case strings.Contains(enc, "gzip"):
			gzr, err := gzip.NewReader(c.Request.Body)
			if err != nil {
				abortDecode(c, http.StatusBadRequest, "invalid gzip request body")
				return
			}
			defer gzr.Close()
			reader = gzr
		case enc == "br":
			reader = brotli.NewReader(c.Request.Body)
		default:
			abortDecode(c, http.StatusUnsupportedMediaType, "unsupported content encoding: "+enc)
			return
		}

		decoded, err := io.ReadAll(io.LimitReader(reader, maxDecompressedBytes+1))
		if err != nil {
			abortDecode(c, http.StatusBadRequest, "failed to decompress request body")
			return
		}
		if int64(len(decoded)) > maxDecompressedBytes {
			abortDecode(c, http.StatusRequestEntityTooLarge, "decompressed request body too large")
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(decoded))
		c.Request.ContentLength = int64(len(decoded))
		c.Request.Header.Del("Content-Encoding")
		c.Next()
	}
}

func abortDecode(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}
