package request

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	read := func(limit int64, size int) (int, error) {
		var n int
		var readErr error
		handler := BodyLimit(limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			n, readErr = len(data), err
		}))
		req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader(strings.Repeat("x", size)))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		return n, readErr
	}

	n, err := read(100, 100)
	assert.NoError(t, err)
	assert.Equal(t, 100, n)

	_, err = read(100, 101)
	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, err, &maxErr)
}
