package upstream

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ztgate/internal/config"
	"ztgate/internal/metrics"
)

func newTestForwarder(address, token string) *Forwarder {
	cfg := &config.Config{
		ZeroTier: config.ZeroTier{Address: address, AuthToken: token},
	}
	store := config.NewStore("unused.yaml", cfg)
	return NewForwarder(store, metrics.New(), zerolog.Nop())
}

func mountForwarder(f *Forwarder) http.Handler {
	r := chi.NewRouter()
	r.Handle("/ztapi/*", f.Handler())
	return r
}

func TestForwardRelaysRequestAndResponse(t *testing.T) {
	var got struct {
		method, path, query, token, body string
	}
	controller := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.token = r.Header.Get("X-ZT1-AUTH")
		raw, _ := io.ReadAll(r.Body)
		got.body = string(raw)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"nwid":"deadbeef"}`))
	}))
	defer controller.Close()

	handler := mountForwarder(newTestForwarder(controller.URL, "zt-secret"))

	r := httptest.NewRequest(http.MethodPost, "/ztapi/controller/network?detail=1", strings.NewReader(`{"name":"lan"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/controller/network", got.path)
	assert.Equal(t, "detail=1", got.query)
	assert.Equal(t, "zt-secret", got.token)
	assert.Equal(t, `{"name":"lan"}`, got.body)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"nwid":"deadbeef"}`, w.Body.String())
}

func TestForwardRelaysUpstreamErrorsVerbatim(t *testing.T) {
	controller := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such network", http.StatusNotFound)
	}))
	defer controller.Close()

	handler := mountForwarder(newTestForwarder(controller.URL, ""))

	r := httptest.NewRequest(http.MethodGet, "/ztapi/controller/network/ff", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no such network")
}

func TestForwardUnreachableUpstreamIsBadGateway(t *testing.T) {
	// A server that is already closed guarantees a refused connection.
	controller := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	address := controller.URL
	controller.Close()

	handler := mountForwarder(newTestForwarder(address, "tok"))

	r := httptest.NewRequest(http.MethodGet, "/ztapi/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "upstream unavailable")
	// Transport detail never leaks to the caller.
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestForwardReadsLiveConfigSnapshot(t *testing.T) {
	var gotToken string
	controller := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-ZT1-AUTH")
		w.WriteHeader(http.StatusOK)
	}))
	defer controller.Close()

	store := config.NewStore("unused.yaml", &config.Config{
		ZeroTier: config.ZeroTier{Address: controller.URL, AuthToken: "old"},
	})
	handler := mountForwarder(NewForwarder(store, metrics.New(), zerolog.Nop()))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ztapi/status", nil))
	assert.Equal(t, "old", gotToken)

	store.Replace(&config.Config{
		ZeroTier: config.ZeroTier{Address: controller.URL, AuthToken: "rotated"},
	})
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ztapi/status", nil))
	assert.Equal(t, "rotated", gotToken)
}
