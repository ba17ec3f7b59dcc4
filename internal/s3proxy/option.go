package s3proxy

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

type S3ProxyOptFunc func(*S3Proxy) error

// WithOrigin sets the S3-compatible origin endpoint and signing region.
// The endpoint may carry a scheme; https is assumed when it does not.
// An empty region keeps the default us-east-1.
func WithOrigin(endpoint, region string) S3ProxyOptFunc {
	return func(s *S3Proxy) (err error) {
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		s.origin, err = url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("invalid origin endpoint: %w", err)
		}
		if s.origin.Host == "" {
			return fmt.Errorf("origin endpoint %q has no host", endpoint)
		}

		if region != "" {
			s.region = region
		}
		return nil
	}
}

// WithBucket sets the bucket every inbound path is resolved against.
func WithBucket(bucket string) S3ProxyOptFunc {
	return func(s *S3Proxy) error {
		s.bucket = strings.Trim(bucket, "/")
		return nil
	}
}

// WithCredentials sets the origin credentials. They are held for signing
// only and never appear in logs or responses.
func WithCredentials(credentials aws.Credentials) S3ProxyOptFunc {
	return func(s *S3Proxy) error {
		s.credentials = credentials
		return nil
	}
}

// WithAccessPolicy loads a Rego policy file gating which objects the
// gateway exposes. Without a policy every path is served.
func WithAccessPolicy(path string) S3ProxyOptFunc {
	return func(s *S3Proxy) (err error) {
		s.policy, err = loadAccessPolicy(context.Background(), path)
		if err != nil {
			return fmt.Errorf("failed to load access policy: %w", err)
		}
		return nil
	}
}

func WithAdditionalCACert(caCert string) S3ProxyOptFunc {
	return func(s *S3Proxy) (err error) {
		b, err := os.ReadFile(caCert)
		if err != nil {
			return fmt.Errorf("failed to read CA cert: %w", err)
		}
		s.proxyCA, err = x509.SystemCertPool()
		if err != nil {
			s.proxyCA = x509.NewCertPool()
		}
		s.proxyCA.AppendCertsFromPEM(b)
		return nil
	}
}
