package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// BodySizeLimit returns middleware that caps the request body at the given
// human-readable size, e.g. "60MB". Requests over the limit fail with 413
// when the handler reads the body.
func BodySizeLimit(size string) gin.HandlerFunc {
	limit, err := ParseSize(size)
	if err != nil || limit <= 0 {
		// An unparseable limit would otherwise silently disable uploads.
		panic(fmt.Sprintf("invalid body size limit %q: %v", size, err))
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// ParseSize parses a human-readable size like "512KB", "60MB", or a bare
// byte count.
func ParseSize(size string) (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(size))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", size, err)
	}
	return n * multiplier, nil
}
