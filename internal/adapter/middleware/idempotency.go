package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const (
	// lock lifetime while the first request is still running
	provisionalLockTTL = 60 * time.Second
	maxClockSkew       = 10 * time.Minute
	storeTimeout       = 2 * time.Second

	HeaderReplayed = "Idempotent-Replayed"
)

type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	RequestID   string    `json:"request_id"`
	RequestAtMS int64     `json:"request_at_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// captureWriter tees the response so it can be stored for replay.
type captureWriter struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// idempotentCall is one mutating request after its headers checked out.
type idempotentCall struct {
	rdb   *redis.Client
	key   string
	entry idempEntry
}

func abort(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// IdempotencyMiddleware guards submit, assign, decide, deploy and rollback.
// The key is method + route + actor id + X-Request-Id, so it must run after
// AuthMiddleware. Server errors release the key so the caller may retry with
// the same id; every other outcome is replayed until ttl expires.
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			a, ok := ActorFrom(c)
			if !ok {
				return abort(c, http.StatusUnauthorized, "unauthenticated")
			}
			call, msg := newIdempotentCall(c, rdb, a.ID)
			if msg != "" {
				return abort(c, http.StatusBadRequest, msg)
			}

			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()
			acquired, err := provisionalSet(ctx, rdb, call.key, call.entry)
			if err != nil {
				slog.Error("idempotency store unavailable", "err", err)
				return abort(c, http.StatusServiceUnavailable, "idempotency store unavailable")
			}
			if !acquired {
				return call.replay(ctx, c)
			}

			w := &captureWriter{ResponseWriter: c.Response().Writer, code: http.StatusOK}
			c.Response().Writer = w
			if err := next(c); err != nil {
				c.Error(err)
			}
			call.finish(w.code, w.buf.Bytes(), ttl)
			return nil
		}
	}
}

// newIdempotentCall validates the idempotency headers and buffers the body.
// A non-empty message means the request is malformed.
func newIdempotentCall(c echo.Context, rdb *redis.Client, actorID string) (*idempotentCall, string) {
	req := c.Request()
	reqID := strings.TrimSpace(req.Header.Get(HeaderRequestID))
	switch {
	case reqID == "":
		return nil, "missing " + HeaderRequestID
	case !validReqID(reqID):
		return nil, "invalid " + HeaderRequestID + " format"
	}

	reqAt, err := parseRequestAt(req.Header.Get(HeaderRequestAt))
	if err != nil {
		return nil, err.Error()
	}
	now := nowUTC()
	if reqAt.Before(now.Add(-maxClockSkew)) || reqAt.After(now.Add(maxClockSkew)) {
		return nil, HeaderRequestAt + " too skewed"
	}

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	return &idempotentCall{
		rdb: rdb,
		key: buildKey(req.Method, c.Path(), actorID, reqID),
		entry: idempEntry{
			InProgress:  true,
			BodySHA256:  bodyHash(body),
			RequestID:   reqID,
			RequestAtMS: reqAt.UnixMilli(),
			CreatedAt:   now,
		},
	}, ""
}

// replay answers a request whose key is already held.
func (call *idempotentCall) replay(ctx context.Context, c echo.Context) error {
	cur, err := loadEntry(ctx, call.rdb, call.key)
	if err != nil {
		slog.Warn("idempotency entry unreadable", "key", call.key, "err", err)
	}
	if cur.BodySHA256 != "" && cur.BodySHA256 != call.entry.BodySHA256 {
		return abort(c, http.StatusConflict, HeaderRequestID+" reused with different body")
	}
	if cur.InProgress || cur.Code == 0 || len(cur.Body) == 0 {
		return abort(c, http.StatusConflict, "request is already in progress")
	}
	c.Response().Header().Set(HeaderReplayed, "true")
	return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
}

// finish stores the outcome, or frees the key after a server error.
func (call *idempotentCall) finish(code int, body []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if code >= http.StatusInternalServerError {
		if err := release(ctx, call.rdb, call.key); err != nil {
			slog.Warn("idempotency release failed", "key", call.key, "err", err)
		}
		return
	}
	final := call.entry
	final.InProgress = false
	final.Code = code
	final.Body = body
	final.CreatedAt = nowUTC()
	if err := saveFinal(ctx, call.rdb, call.key, final, ttl); err != nil {
		slog.Warn("idempotency final write failed", "key", call.key, "err", err)
	}
}
