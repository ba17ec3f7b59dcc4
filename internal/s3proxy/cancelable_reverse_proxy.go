// SPDX-License-Identifier: AGPL-3.0-only
package s3proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"
)

// cancelableProxy wraps httputil.ReverseProxy so a rewrite step can abort
// the relay with a canned response instead of an origin round trip: the
// response is smuggled through the request context and returned by the
// transport. Transport failures (unreachable origin, TLS errors) surface
// through the ErrorHandler with the same Error: body contract.
type cancelableProxy struct {
	httputil.ReverseProxy
}

func newCancellableProxy(proxy httputil.ReverseProxy, rewrite func(*httputil.ProxyRequest) error) *cancelableProxy {
	proxy.Transport = newCancellableTransport(proxy.Transport)
	proxy.Rewrite = func(pr *httputil.ProxyRequest) {
		err := rewrite(pr)
		if err != nil {
			var errc cancelError
			if !errors.As(err, &errc) {
				errc = cancelError{message: "failed to rewrite request", err: err}
			}

			pr.Out = cancelProxy(pr.Out, errc.Response(pr.In))
			return
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Default().Error("origin fetch failed", "method", r.Method, "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)
	}

	return &cancelableProxy{ReverseProxy: proxy}
}

type cancelableTransportKey struct{}

func cancelProxy(req *http.Request, res *http.Response) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), cancelableTransportKey{}, res))
}

type cancellableTransport struct {
	transport http.RoundTripper
}

func newCancellableTransport(t http.RoundTripper) cancellableTransport {
	if t == nil {
		t = http.DefaultTransport
	}
	return cancellableTransport{
		transport: t,
	}
}

func (c cancellableTransport) RoundTrip(req *http.Request) (res *http.Response, err error) {
	res, ok := req.Context().Value(cancelableTransportKey{}).(*http.Response)
	if ok {
		return res, nil
	}

	return c.transport.RoundTrip(req)
}

type cancelError struct {
	code    int
	message string
	err     error
}

func (e cancelError) Error() string {
	if e.err == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.err)
}

func (e cancelError) Unwrap() error {
	return e.err
}

func (e cancelError) Response(req *http.Request) *http.Response {
	code := e.code
	if code == 0 {
		code = http.StatusInternalServerError
	}
	return &http.Response{
		StatusCode: code,
		Proto:      req.Proto,
		ProtoMajor: req.ProtoMajor,
		ProtoMinor: req.ProtoMinor,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader("Error: " + e.Error())),
		Request:    req,
	}
}
