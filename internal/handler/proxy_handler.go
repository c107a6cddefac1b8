package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"

	"command-center/internal/apiclient"
	"command-center/internal/event"
	"command-center/internal/guard"
	"command-center/internal/model"
	"command-center/pkg/apierror"
)

const (
	ProxyPrefix = "/api/backend"

	maxProxyBody = 10 << 20

	// backendAuthPrefix is served by the gateway's own login routes. Its
	// responses carry tokens and are never forwarded.
	backendAuthPrefix = "/api/auth"
)

// ProxyHandler forwards dashboard API calls to the backend through the
// context's refreshing client, so the browser never holds a token.
type ProxyHandler struct {
	sessions Sessions
	bus      event.Bus
	target   *url.URL
}

func NewProxyHandler(sessions Sessions, bus event.Bus, backendURL string) (*ProxyHandler, error) {
	target, err := url.Parse(strings.TrimRight(backendURL, "/"))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", backendURL)
	}
	return &ProxyHandler{sessions: sessions, bus: bus, target: target}, nil
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := backendPath(r.URL.Path)
	if !ok {
		writeError(w, apierror.New("NOT_FOUND", "resource not found", "", http.StatusNotFound))
		return
	}

	entry, err := entryFor(h.sessions, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := bufferBody(r); err != nil {
		writeError(w, err)
		return
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = rest
			pr.Out.URL.RawPath = ""
			pr.SetURL(h.target)
			pr.SetXForwarded()

			// The gateway's own cookie and any client supplied credentials
			// stay here; the transport adds the bearer token.
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
		},
		Transport: entry.Client.Transport(),
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del("Set-Cookie")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, apiclient.ErrSessionExpired) {
				entry.Controller.Invalidate()
				if h.bus != nil {
					h.bus.Publish(event.New(event.TypeSessionExpired, entry.ID, entry.Controller.Session()))
				}
				writeErrorWithMeta(w, err, &model.Meta{Redirect: guard.LoginPath})
				return
			}
			slog.Warn("backend proxy failed", "path", r.URL.Path, "error", err)
			writeError(w, fmt.Errorf("%w: %w", model.ErrBackendUnavailable, err))
		},
	}

	proxy.ServeHTTP(w, r)
}

// backendPath maps a gateway path to the backend path. It refuses the
// backend's auth endpoints however the path is spelled.
func backendPath(p string) (string, bool) {
	rest := strings.TrimPrefix(p, ProxyPrefix)
	if rest == "" {
		rest = "/"
	}

	cleaned := strings.ToLower(path.Clean("/" + rest))
	if cleaned == backendAuthPrefix || strings.HasPrefix(cleaned, backendAuthPrefix+"/") {
		return "", false
	}
	return rest, true
}

// bufferBody reads the request body into memory so the transport can
// replay it after a token refresh.
func bufferBody(r *http.Request) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody+1))
	if err != nil {
		return apierror.Wrap(err, "BAD_REQUEST", "failed to read request body", http.StatusBadRequest)
	}
	if len(body) > maxProxyBody {
		return apierror.New("PAYLOAD_TOO_LARGE", "request body too large", "", http.StatusRequestEntityTooLarge)
	}
	if len(body) == 0 {
		r.ContentLength = 0
		r.Body = http.NoBody
		return nil
	}

	r.ContentLength = int64(len(body))
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return nil
}
