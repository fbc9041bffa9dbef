// Package cors lets the school's web clients call the grading API and read
// export downloads from another origin.
package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	// Content-Disposition carries the grade-sheet export filename.
	exposedHeaders = "Content-Disposition, X-Request-ID"
	maxAge         = "600"
)

type policy struct {
	origins map[string]struct{}
}

// New returns the CORS middleware. An empty origin list allows any origin.
func New(allowedOrigins []string) gin.HandlerFunc {
	p := policy{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		if origin = normalise(origin); origin != "" {
			p.origins[origin] = struct{}{}
		}
	}
	return p.handle
}

func (p policy) handle(c *gin.Context) {
	header := c.Writer.Header()
	origin := c.GetHeader("Origin")
	switch {
	case origin != "" && p.allows(origin):
		header.Set("Access-Control-Allow-Origin", origin)
	case origin == "" && len(p.origins) == 0:
		header.Set("Access-Control-Allow-Origin", "*")
	}

	header.Set("Vary", "Origin")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Access-Control-Allow-Headers", allowedHeaders)
	header.Set("Access-Control-Allow-Methods", allowedMethods)
	header.Set("Access-Control-Expose-Headers", exposedHeaders)
	header.Set("Access-Control-Max-Age", maxAge)

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

func (p policy) allows(origin string) bool {
	if len(p.origins) == 0 {
		return true
	}
	_, ok := p.origins[normalise(origin)]
	return ok
}

func normalise(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}
