package middleware

import (
	"net/http"
	"strings"

	"yeenote-sync-server/internal/domain"
)

const (
	DeviceIDHeader   = "X-Device-ID"
	maxDeviceIDBytes = 128
)

// DeviceMiddleware tags the request context with the calling device so
// change notifications are not echoed back to it.
func DeviceMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := strings.TrimSpace(r.Header.Get(DeviceIDHeader))
			if deviceID == "" || len(deviceID) > maxDeviceIDBytes {
				next.ServeHTTP(w, r)
				return
			}

			if info := requestInfoFrom(r.Context()); info != nil {
				info.deviceID = deviceID
			}
			next.ServeHTTP(w, r.WithContext(domain.WithDeviceID(r.Context(), deviceID)))
		})
	}
}

func GetDeviceID(r *http.Request) string {
	return domain.DeviceIDFrom(r.Context())
}
