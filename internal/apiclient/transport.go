package apiclient

import (
	"context"
	"io"
	"net/http"
	"strings"
)

type skipRefreshKey struct{}

// WithoutRefresh marks requests made with ctx as exempt from the refresh
// protocol: a 401 is returned as is. Login uses it so bad credentials are
// not mistaken for an expired session.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRefreshKey{}, true)
}

func refreshSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipRefreshKey{}).(bool)
	return skip
}

// Transport injects the bearer token and runs the refresh protocol.
type Transport struct {
	client *Client
	base   http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	tokens := t.client.tokens

	// The generation is read before the token so a refresh landing in
	// between is seen as newer than this request.
	generation := t.client.refreshGeneration()
	sentToken := tokens.AccessToken(ctx)
	resp, err := t.send(req, sentToken, false)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || refreshSkipped(ctx) || isRefreshCall(req) || !replayable(req) {
		return resp, nil
	}

	// From here on the request counts as retried: whatever the retry
	// returns goes back to the caller unmodified.
	if tokens.RefreshToken(ctx) == "" {
		tokens.ClearTokens(ctx)
		return resp, nil
	}

	// A refresh that finished after this request went out already produced
	// a newer token; use it instead of rotating again.
	token := tokens.AccessToken(ctx)
	if token == "" || token == sentToken {
		token, err = t.client.refreshAfter(ctx, generation)
		if err != nil {
			drain(resp)
			return nil, err
		}
	}

	drain(resp)
	return t.send(req, token, true)
}

// send clones req, sets the Authorization header and sends it under the
// client timeout, which ends when the response body is closed. The header
// is always present, with an empty token when there is none.
func (t *Transport) send(req *http.Request, token string, rewind bool) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.client.timeout)
	out := req.Clone(ctx)
	out.Header.Set("Authorization", "Bearer "+token)

	if rewind && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, err
		}
		out.Body = body
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func isRefreshCall(req *http.Request) bool {
	return strings.HasSuffix(strings.TrimRight(req.URL.Path, "/"), RefreshPath)
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
