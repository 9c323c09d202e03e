package health

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeReporter struct {
	listening atomic.Bool
	failed    atomic.Bool
}

func (f *fakeReporter) Listening() bool { return f.listening.Load() }
func (f *fakeReporter) Failed() bool    { return f.failed.Load() }

func probe(h http.Handler, path string) int {
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, path, nil))
	return rw.Code
}

func TestHandler(t *testing.T) {
	r := &fakeReporter{}
	h := NewHandler(r)

	assert.Equal(t, http.StatusOK, probe(h, "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, probe(h, "/ready"))

	r.listening.Store(true)
	assert.Equal(t, http.StatusOK, probe(h, "/ready"))

	r.listening.Store(false)
	r.failed.Store(true)
	assert.Equal(t, http.StatusServiceUnavailable, probe(h, "/live"))
}
