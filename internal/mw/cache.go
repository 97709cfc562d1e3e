package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheStatusHeader reports whether a GET was served from the response cache.
const CacheStatusHeader = "X-Cache"

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type recordingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GETs from memory. A successful write through the same
// group flushes every entry.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet:
		case http.MethodHead, http.MethodOptions:
			c.Next()
			return
		default:
			c.Next()
			if s := c.Writer.Status(); s >= 200 && s < 300 {
				store.Flush()
			}
			return
		}

		key := c.Request.URL.RequestURI()
		if resp, found := store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set(CacheStatusHeader, "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		c.Writer.Header().Set(CacheStatusHeader, "MISS")
		rec := &recordingWriter{ResponseWriter: c.Writer, body: new(bytes.Buffer)}
		c.Writer = rec

		c.Next()

		if rec.Status() >= 200 && rec.Status() < 300 {
			headers := rec.Header().Clone()
			headers.Del(CacheStatusHeader)
			headers.Del(RequestIDHeader)
			store.Set(key, cachedResponse{
				status:  rec.Status(),
				headers: headers,
				body:    rec.body.Bytes(),
			}, duration)
		}
	}
}
