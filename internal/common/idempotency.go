package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const idemPending = "pending"

// ReplayedHeader marks responses served from the idempotency store.
const ReplayedHeader = "Idempotent-Replayed"

// Idem provides an Idempotency-Key middleware backed by Redis. The first
// request with a key runs the handler; a successful response is stored and
// replayed for later requests with the same key. Concurrent duplicates get a
// 409 while the first one is still running. A key reused with a different
// body is rejected with 422.
type Idem struct {
	R      redis.Cmdable
	TTL    time.Duration
	Prefix string
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	BodyDigest  string `json:"body_digest"`
}

func (i Idem) key(r *http.Request, header string) string {
	prefix := i.Prefix
	if prefix == "" {
		prefix = "idem"
	}
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery + "\n" + header))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		var body []byte
		if r.Body != nil {
			var err error
			if body, err = io.ReadAll(r.Body); err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
					return
				}
				JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable request body", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		digest := bodyDigest(body)

		ctx := r.Context()
		key := i.key(r, header)
		ok, err := i.R.SetNX(ctx, key, idemPending+":"+digest, i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !ok {
			i.replay(ctx, w, key, digest)
			return
		}

		rec := &bufferedWriter{header: http.Header{}, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		rec.flush(w)

		if rec.status >= 200 && rec.status < 300 {
			stored, _ := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: rec.header.Get("Content-Type"),
				Body:        rec.body.Bytes(),
				BodyDigest:  digest,
			})
			_ = i.R.Set(context.WithoutCancel(ctx), key, stored, i.ttl()).Err()
			return
		}
		// failed attempts may be retried with the same key
		_ = i.R.Del(context.WithoutCancel(ctx), key).Err()
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key, digest string) {
	raw, err := i.R.Get(ctx, key).Bytes()
	if err != nil {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request in progress", nil)
		return
	}
	if pending, found := strings.CutPrefix(string(raw), idemPending+":"); found {
		if pending != digest {
			keyReused(w)
			return
		}
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request in progress", nil)
		return
	}
	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
		return
	}
	if stored.BodyDigest != digest {
		keyReused(w)
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func keyReused(w http.ResponseWriter) {
	JSONError(w, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "idempotency key was used with a different request body", nil)
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header         { return b.header }
func (b *bufferedWriter) WriteHeader(status int)      { b.status = status }
func (b *bufferedWriter) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *bufferedWriter) flush(w http.ResponseWriter) {
	for k, v := range b.header {
		w.Header()[k] = v
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}
