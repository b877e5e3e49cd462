package authtest

import (
	"net/http"

	"github.com/aussiebroadwan/authsession/pkg/httpx"
)

// Fault replaces the normal answer of an endpoint for one request.
type Fault struct {
	Status  int
	Code    string
	Message string

	// Drop closes the connection without a response.
	Drop bool
}

// NetworkDown drops the connection, which clients see as a transport failure.
var NetworkDown = Fault{Drop: true}

// Status answers with a bare error status.
func Status(code int) Fault {
	return Fault{Status: code, Code: "internal-error", Message: http.StatusText(code)}
}

// Fail queues faults for the next requests to path, one fault per request.
func (s *Server) Fail(path string, faults ...Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = append(s.faults[path], faults...)
}

// FailN queues n copies of f for path.
func (s *Server) FailN(path string, n int, f Fault) {
	for range n {
		s.Fail(path, f)
	}
}

// inject counts requests and serves queued faults before the real handler runs.
func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		s.mu.Lock()
		s.calls[path]++
		var fault *Fault
		if queued := s.faults[path]; len(queued) > 0 {
			fault = &queued[0]
			s.faults[path] = queued[1:]
		}
		s.mu.Unlock()

		switch {
		case fault == nil:
			next.ServeHTTP(w, r)
		case fault.Drop:
			drop(w)
		default:
			httpx.WriteError(w, fault.Status, fault.Code, fault.Message)
		}
	})
}

func drop(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	_ = conn.Close()
}
