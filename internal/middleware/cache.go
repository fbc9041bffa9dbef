package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Keys of the envelope meta block returned with grade sheets, student grades
// and analytics.
const (
	MetaCacheHit       = "cache_hit"
	MetaProcessingTime = "processing_time_ms"

	metaContextKey = "response_meta"
)

// Meta is the per-request meta block handlers fill while serving a grade view.
type Meta map[string]interface{}

// WithResponseMeta attaches an empty Meta to the request and stamps the
// processing time once the handler returns, unless the handler set one.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		meta := Meta{}
		c.Set(metaContextKey, meta)
		c.Next()
		if _, ok := meta[MetaProcessingTime]; !ok {
			meta[MetaProcessingTime] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit marks whether the grade view came from Redis or was recomputed.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, MetaCacheHit, hit)
}

// SetMeta stores one meta value, creating the block when WithResponseMeta is
// not installed.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	meta := ExtractMeta(c)
	if meta == nil {
		meta = Meta{}
		c.Set(metaContextKey, meta)
	}
	meta[key] = value
}

// ExtractMeta returns the request's meta block or nil.
func ExtractMeta(c *gin.Context) Meta {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(metaContextKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(Meta)
	return meta
}
