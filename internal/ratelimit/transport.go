package ratelimit

import "net/http"

// Transport is an http.RoundTripper that gates every request through a
// Limiter and feeds every response's headers back into it. Injected as
// the transport of both forge clients so rate-limit bookkeeping cannot
// be bypassed.
type Transport struct {
	// Base is the underlying round tripper. Nil means http.DefaultTransport.
	Base http.RoundTripper

	// Limiter gates requests. Required.
	Limiter *Limiter
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	acquireErr := t.Limiter.Acquire(req.Context())
	if acquireErr != nil {
		return nil, acquireErr
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	t.Limiter.UpdateFromResponse(resp)

	return resp, nil
}
