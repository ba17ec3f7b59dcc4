// SPDX-License-Identifier: AGPL-3.0-only
package s3proxy

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/Wh1isper/s3-public-proxy/internal/sigv4"
)

var _ http.Handler = &S3Proxy{}

// S3Proxy relays anonymous GET/HEAD requests to a private S3-compatible
// bucket, signing each origin request with credentials the client never
// sees. All state is read-only after NewS3Proxy returns.
type S3Proxy struct {
	credentials aws.Credentials
	region      string

	origin *url.URL
	bucket string

	signer *sigv4.Signer
	policy *accessPolicy

	proxy   *cancelableProxy
	proxyCA *x509.CertPool
}

func NewS3Proxy(opts ...S3ProxyOptFunc) (s *S3Proxy, err error) {
	s = &S3Proxy{
		region: "us-east-1",
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if s.origin == nil {
		return nil, fmt.Errorf("origin endpoint is required")
	}
	if s.bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	s.signer = sigv4.NewSigner(s.credentials, s.region)
	s.proxy = newCancellableProxy(httputil.ReverseProxy{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: s.proxyCA,
			},
		},
		ModifyResponse: shapeResponse,
	}, s.rewrite)
	return
}

func (s *S3Proxy) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func (s *S3Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.policy != nil {
		allowed, err := s.policy.Allow(r.Context(), r.Method, r.URL.Path)
		if err != nil {
			slog.Default().Error("failed to evaluate access policy", "error", err)
			http.Error(w, "Error: access policy evaluation failed", http.StatusInternalServerError)
			return
		}
		if !allowed {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	s.proxy.ServeHTTP(w, r)
}
