package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mutualpool/pkg/requestcontext"
)

func TestMiddlewareWithClockPinsRequestTime(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var first, second time.Time

	handler := MiddlewareWithClock(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, fixed, first)
	assert.Equal(t, first, second)
}

func TestMiddlewareUsesWallClock(t *testing.T) {
	before := time.Now()
	var got time.Time
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = requestcontext.Now(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, got.Before(before))
}
