package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/quill/utils"
)

// PageCachePrefix namespaces rendered pages in the cache.
const PageCachePrefix = "cache:page:"

type bodyCapture struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CachePage serves GET responses from cache for ttl. Entries only expire, so new content
// appears after at most ttl. The key includes the viewer because pages show who is logged in.
func CachePage(cache utils.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet || ttl <= 0 {
			ctx.Next()
			return
		}

		key := pageKey(ctx)
		if b, ok := cache.Get(ctx.Request.Context(), key); ok {
			contentType, body := splitEntry(b)
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, contentType, body)
			ctx.Abort()
			return
		}

		w := &bodyCapture{ResponseWriter: ctx.Writer}
		ctx.Writer = w
		ctx.Next()

		if w.Status() != http.StatusOK || w.body.Len() == 0 {
			return
		}
		entry := append([]byte(w.Header().Get("Content-Type")+"\n"), w.body.Bytes()...)
		cache.Set(ctx.Request.Context(), key, entry, ttl)
	}
}

func pageKey(ctx *gin.Context) string {
	var viewer uint
	if user, ok := CurrentUser(ctx); ok {
		viewer = user.ID
	}
	return PageCachePrefix + ctx.Request.URL.RequestURI() + ":" + strconv.FormatUint(uint64(viewer), 10)
}

func splitEntry(b []byte) (string, []byte) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return "text/html; charset=utf-8", b
	}
	return string(b[:i]), b[i+1:]
}
