package middleware

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"
)

// etagRecorder buffers the body so a hash can be taken before anything is
// sent to the client.
type etagRecorder struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (rec *etagRecorder) Write(b []byte) (int, error) {
	return rec.body.Write(b)
}

func (rec *etagRecorder) WriteHeader(code int) {
	rec.status = code
}

// ETag tags successful GET responses with a content hash and answers
// If-None-Match revalidations with 304. WebSocket upgrades are left alone.
func ETag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || strings.HasPrefix(r.URL.Path, "/api/v1/ws") {
			next.ServeHTTP(w, r)
			return
		}

		rec := &etagRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status != http.StatusOK {
			w.WriteHeader(rec.status)
			w.Write(rec.body.Bytes())
			return
		}

		sum := sha1.Sum(rec.body.Bytes())
		tag := `"` + hex.EncodeToString(sum[:]) + `"`
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", tag)
		w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate")
		w.WriteHeader(rec.status)
		w.Write(rec.body.Bytes())
	})
}
