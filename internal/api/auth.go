package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/banshee-data/airquality.report/internal/httputil"
)

// APIKeyHeader carries the admin key on mutating requests.
const APIKeyHeader = "X-API-Key"

// Authorized reports whether r carries key. An empty key authorises
// nothing.
func Authorized(r *http.Request, key string) bool {
	if key == "" {
		return false
	}
	got := r.Header.Get(APIKeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}

func forbidden(w http.ResponseWriter) {
	httputil.WriteText(w, http.StatusForbidden, "403 Forbidden")
}
