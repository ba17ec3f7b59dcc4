// SPDX-License-Identifier: AGPL-3.0-only
package s3proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
)

// passthroughHeaders are the only inbound headers forwarded to the origin.
// Everything else is dropped so stray client headers, x-amz-* ones in
// particular, cannot diverge from the signed header set.
var passthroughHeaders = []string{
	"Range",
	"If-Match",
	"If-None-Match",
	"If-Modified-Since",
	"If-Unmodified-Since",
}

func (s *S3Proxy) rewrite(pr *httputil.ProxyRequest) error {
	target := s.targetURL(pr.In.URL)

	signed, err := s.signer.Sign(pr.In.Method, target, time.Now())
	if err != nil {
		return cancelError{message: "failed to sign request", err: err}
	}

	header := http.Header{}
	for _, name := range passthroughHeaders {
		if v := pr.In.Header.Values(name); len(v) > 0 {
			header[name] = v
		}
	}
	pr.Out.Header = header
	signed.Apply(pr.Out)
	return nil
}

// targetURL maps an inbound object path onto the configured bucket at the
// origin. The root path contributes nothing so the bucket itself is
// addressed without a trailing slash. The query travels byte-for-byte;
// canonicalization happens only inside the signature.
func (s *S3Proxy) targetURL(in *url.URL) *url.URL {
	path, rawPath := in.Path, in.RawPath
	if path == "/" {
		path, rawPath = "", ""
	}

	out := &url.URL{
		Scheme:   s.origin.Scheme,
		Host:     s.origin.Host,
		Path:     "/" + s.bucket + path,
		RawQuery: in.RawQuery,
	}
	if rawPath != "" {
		out.RawPath = "/" + s.bucket + rawPath
	}
	return out
}

func shapeResponse(res *http.Response) error {
	// Only successful responses are safe to cache or expose cross-origin.
	if res.StatusCode >= http.StatusBadRequest {
		return nil
	}
	res.Header.Set("Access-Control-Allow-Origin", "*")
	res.Header.Set("Cache-Control", "public, max-age=86400")
	return nil
}
