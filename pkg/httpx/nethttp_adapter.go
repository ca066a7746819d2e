package httpx

import "net/http"

// NetHTTPAdapter adapts a HandlerFunc into a standard net/http handler.
func NetHTTPAdapter(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &Request{
			Ctx:        r.Context(),
			Method:     r.Method,
			Path:       r.URL.Path,
			Header:     r.Header.Clone(),
			Body:       r.Body,
			RemoteAddr: r.RemoteAddr,
		}
		rw := &netHTTPResponseWriter{w: w, header: make(http.Header)}
		for k, v := range w.Header() {
			rw.header[k] = append([]string(nil), v...)
		}
		h(rw, req)
		if req.Body != nil {
			_ = req.Body.Close()
		}
	})
}

type netHTTPResponseWriter struct {
	w      http.ResponseWriter
	header http.Header
	status int
}

func (r *netHTTPResponseWriter) Header() http.Header { return r.header }

func (r *netHTTPResponseWriter) WriteHeader(status int) {
	r.status = status
	for k, v := range r.header {
		r.w.Header()[k] = append([]string(nil), v...)
	}
	r.w.WriteHeader(status)
}

func (r *netHTTPResponseWriter) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.WriteHeader(http.StatusOK)
	}
	return r.w.Write(b)
}
