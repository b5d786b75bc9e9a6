package request

import "net/http"

// BodyLimit caps request bodies with http.MaxBytesReader; reads past the
// limit fail, so the JSON decoder reports a bad request. Mount it before any
// handler that decodes a body.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
