package api

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"docchat_go_backend/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger attaches a logger carrying the request id to the request
// context and logs one line per request.
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		logger := base.With().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}

// ResponseStore caches rendered responses per user.
type ResponseStore interface {
	Get(ctx context.Context, userID, key string) ([]byte, bool, error)
	Set(ctx context.Context, userID, key string, body []byte, ttl time.Duration) error
	InvalidateUser(ctx context.Context, userID string) error
}

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// CacheResponses serves successful GET responses from store for ttl. Store
// failures fall through to the handler.
func CacheResponses(store ResponseStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if store == nil || !ok || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		log := zerolog.Ctx(c.Request.Context())
		userID := user.ID.String()
		key := c.Request.URL.RequestURI()

		body, hit, err := store.Get(c.Request.Context(), userID, key)
		if err != nil {
			log.Warn().Err(err).Msg("response cache read failed")
		}
		if hit {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			c.Abort()
			return
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Header("X-Cache", "MISS")
		c.Next()

		if writer.Status() != http.StatusOK {
			return
		}
		if err := store.Set(c.Request.Context(), userID, key, writer.body.Bytes(), ttl); err != nil {
			log.Warn().Err(err).Msg("response cache write failed")
		}
	}
}

// InvalidateOnWrite drops the user's cached responses after any successful
// mutating request.
func InvalidateOnWrite(store ResponseStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if store == nil || c.Request.Method == http.MethodGet {
			return
		}
		// A failed send still appends an apology, so 503 counts as a write.
		status := c.Writer.Status()
		if status >= http.StatusBadRequest && status != http.StatusServiceUnavailable {
			return
		}
		user, ok := auth.CurrentUser(c)
		if !ok {
			return
		}
		if err := store.InvalidateUser(context.WithoutCancel(c.Request.Context()), user.ID.String()); err != nil {
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("response cache invalidation failed")
		}
	}
}
