package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"pkt.systems/pslog"

	"github.com/Protocol-Lattice/backdrop/src/logx"
)

type responseRecorder struct {
	status int
	bytes  int64
	writer http.ResponseWriter
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += int64(n)
	return n, err
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{writer: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		pslog.Ctx(r.Context()).Info("http request", "method", r.Method, "path", r.URL.Path, "status", status, "bytes", rec.bytes, "duration_ms", time.Since(start).Milliseconds())
	})
}

// withTabLogger binds the tab id to the request logger for tab-scoped routes.
func withTabLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tabID := chi.URLParam(r, "tabID")
		ctx = logx.ContextWithTabLogger(ctx, pslog.Ctx(ctx), tabID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
