package device

import (
	"fmt"
	"net/http"

	"github.com/mssola/useragent"

	"verigate/pkg/requestcontext"
)

// Device parses the User-Agent header into a compact "browser/os" description
// and injects it into the context. It should be registered after the metadata
// middleware (which extracts the raw User-Agent).
//
// The description ends up in session metadata and audit events so operators
// can see which client started a verification flow.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ua := requestcontext.UserAgent(ctx); ua != "" {
			ctx = requestcontext.WithDevice(ctx, Describe(ua))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Describe reduces a raw User-Agent string to a "browser/os" pair.
// Unknown agents come back as "unknown".
func Describe(rawUA string) string {
	ua := useragent.New(rawUA)
	name, _ := ua.Browser()
	os := ua.OS()
	if name == "" && os == "" {
		return "unknown"
	}
	if name == "" {
		return os
	}
	if os == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", name, os)
}
