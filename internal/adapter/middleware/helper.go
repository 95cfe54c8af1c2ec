package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"agriloan/pkg/id"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderRequestAt = "X-Request-At"
)

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func nowUTC() time.Time { return time.Now().UTC() }

func buildKey(method, route, actorID, requestID string) string {
	return "idemp:" + strings.ToLower(method) + ":" + route + ":" + actorID + ":" + requestID
}

var reUUID = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-5][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)

// validReqID accepts a UUID or a public 32-hex id.
func validReqID(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return reUUID.MatchString(s) || id.Valid(s)
}

// parseRequestAt accepts epoch seconds, epoch milliseconds, or RFC3339 with a
// zone. Naive local timestamps are rejected.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing " + HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 { // ms
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
}

// ---- Redis helpers ----
func provisionalSet(ctx context.Context, rdb *redis.Client, key string, entry idempEntry) (bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, errors.Wrap(err, "encode idempotency entry")
	}
	ok, err := rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
	return ok, errors.Wrap(err, "idempotency setnx")
}

func loadEntry(ctx context.Context, rdb *redis.Client, key string) (idempEntry, error) {
	var e idempEntry
	v, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, errors.Wrap(err, "idempotency get")
	}
	if err := json.Unmarshal(v, &e); err != nil {
		return e, errors.Wrap(err, "decode idempotency entry")
	}
	return e, nil
}

func saveFinal(ctx context.Context, rdb *redis.Client, key string, entry idempEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encode idempotency entry")
	}
	return errors.Wrap(rdb.Set(ctx, key, payload, ttl).Err(), "idempotency set")
}

func release(ctx context.Context, rdb *redis.Client, key string) error {
	return errors.Wrap(rdb.Del(ctx, key).Err(), "idempotency del")
}
