// Package upstream relays authenticated requests to the ZeroTier controller
// API, attaching the controller's own service token.
package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ztgate/internal/config"
	"ztgate/internal/httpx"
	"ztgate/internal/metrics"
)

// ErrUpstream marks transport-level failures talking to the controller.
var ErrUpstream = errors.New("upstream request failed")

// Forwarder is a byte-transparent relay: it never inspects or transforms
// the payload and never retries. Authentication has already happened by the
// time a request reaches it. The controller address and token are read from
// the live config snapshot on every call so config reloads take effect
// without a restart.
type Forwarder struct {
	config  *config.Store
	client  *http.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewForwarder(configStore *config.Store, m *metrics.Metrics, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		config: configStore,
		// No client timeout: controller calls are bounded by the request
		// context, so a client disconnect abandons the upstream call.
		client:  &http.Client{},
		metrics: m,
		logger:  logger,
	}
}

// Forward sends method/path/query/body verbatim to the controller and
// returns its response. The caller owns the response body.
func (f *Forwarder) Forward(r *http.Request, path string) (*http.Response, error) {
	zt := f.config.Snapshot().ZeroTier

	url := strings.TrimRight(zt.Address, "/") + path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("X-ZT1-AUTH", zt.AuthToken)
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return resp, nil
}

// Handler adapts the forwarder to the catch-all route. The mount prefix is
// stripped by the router; the chi wildcard carries the controller path.
func (f *Forwarder) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := "/" + chi.URLParam(r, "*")

		resp, err := f.Forward(r, path)
		if err != nil {
			f.metrics.UpstreamErrors.Inc()
			f.logger.Error().Err(err).Str("path", path).Msg("controller request failed")
			httpx.WriteError(w, http.StatusBadGateway, "upstream unavailable")
			return
		}
		defer resp.Body.Close()

		f.metrics.UpstreamRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		if contentType := resp.Header.Get("Content-Type"); contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			f.logger.Debug().Err(err).Msg("relay response body interrupted")
		}
	}
}
