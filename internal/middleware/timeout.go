package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// TimeoutMessage is the body sent when a request exceeds its deadline.
const TimeoutMessage = "request timed out"

// Timeout bounds every request to d.
//
// The rest of the chain runs on its own goroutine against a buffered
// writer, with a context that expires after d. If the chain finishes first
// its buffered response is sent as is. If the deadline fires first the
// client gets 408 Request Timeout, the context cancellation aborts any
// in-flight upstream call, and later writes from the abandoned chain are
// discarded. A context cancelled for another reason (client gone) maps to
// 500 with the context error as body.
//
// A client-supplied X-Request-Id is echoed on both. Counter-assigned ids
// are not, since they are handed out below this layer.
//
// chi's own middleware.Timeout waits for the handler and answers 504, so it
// cannot give a hard 408 deadline.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Read before the chain starts: RequestID writes this header on
			// the shared request from the chain's goroutine.
			inboundID := r.Header.Get(RequestIDHeader)

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			r = r.WithContext(ctx)

			tw := &timeoutWriter{header: make(http.Header)}
			done := make(chan struct{})
			panicChan := make(chan any, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case p := <-panicChan:
				panic(p)
			case <-done:
			case <-ctx.Done():
			}

			tw.mu.Lock()
			defer tw.mu.Unlock()

			// A chain that gave up because its context ended also counts as
			// timed out, even if it returned before this goroutine noticed.
			if err := ctx.Err(); err != nil {
				tw.timedOut = true

				status, msg := http.StatusInternalServerError, err.Error()
				if errors.Is(err, context.DeadlineExceeded) {
					status, msg = http.StatusRequestTimeout, TimeoutMessage
				}
				if inboundID != "" {
					w.Header().Set(RequestIDHeader, inboundID)
				}
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(status)
				_, _ = w.Write([]byte(msg))
				return
			}

			dst := w.Header()
			for k, vv := range tw.header {
				dst[k] = vv
			}
			if !tw.wroteHeader {
				tw.code = http.StatusOK
			}
			w.WriteHeader(tw.code)
			_, _ = w.Write(tw.buf.Bytes())
		})
	}
}

// timeoutWriter buffers a response until Timeout decides whether to send it.
type timeoutWriter struct {
	header http.Header

	mu          sync.Mutex
	buf         bytes.Buffer
	code        int
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.header }

func (tw *timeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.buf.Write(p)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.wroteHeader = true
	tw.code = code
}
