// SPDX-License-Identifier: AGPL-3.0-only
package sigv4

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	requestSuffix    = "aws4_request"

	timeFormat      = "20060102T150405Z"
	shortTimeFormat = "20060102"

	amzDateHeader       = "x-amz-date"
	amzContentSHAHeader = "x-amz-content-sha256"

	// UnsignedPayload is the payload hash sentinel for bodyless requests.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// ServiceS3 is the signing service name for S3-compatible endpoints.
	ServiceS3 = "s3"
)

// signedHeaderList is fixed: the gateway sends no body and forwards no
// signed client headers, so every signature covers exactly these three.
const signedHeaderList = "host;" + amzContentSHAHeader + ";" + amzDateHeader

// Signer computes Authorization headers for anonymous relays. It is
// read-only after construction and safe for concurrent use.
type Signer struct {
	credentials aws.Credentials
	region      string
	service     string
}

type SignerOption func(*Signer)

// WithService overrides the signing service name (default "s3").
func WithService(service string) SignerOption {
	return func(s *Signer) {
		s.service = service
	}
}

func NewSigner(credentials aws.Credentials, region string, opts ...SignerOption) *Signer {
	s := &Signer{
		credentials: credentials,
		region:      region,
		service:     ServiceS3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignedRequest is the final signing artifact: the target method and URL
// plus the Host, x-amz-date, x-amz-content-sha256 and Authorization headers.
// It must not be mutated after construction; any change invalidates the
// signature.
type SignedRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
}

// Apply stamps the signed headers onto an outbound request. The Host header
// goes through Request.Host, which is what the transport actually sends.
func (sr *SignedRequest) Apply(r *http.Request) {
	r.Method = sr.Method
	r.URL = sr.URL
	r.Host = sr.URL.Host
	for name, values := range sr.Header {
		if strings.EqualFold(name, "Host") {
			continue
		}
		r.Header[http.CanonicalHeaderKey(name)] = values
	}
}

// Sign builds the canonical request for method and target at signingTime and
// returns the signed artifact. The timestamp is taken once and reused in the
// x-amz-date header and the credential scope. Malformed targets or missing
// credentials fail before any signing work, never producing a partially
// signed request.
func (s *Signer) Sign(method string, target *url.URL, signingTime time.Time) (*SignedRequest, error) {
	if s.credentials.AccessKeyID == "" || s.credentials.SecretAccessKey == "" {
		return nil, fmt.Errorf("sigv4: missing credentials")
	}
	if target == nil || target.Host == "" {
		return nil, fmt.Errorf("sigv4: target URL has no host")
	}

	t := signingTime.UTC()
	amzDate := t.Format(timeFormat)
	shortDate := t.Format(shortTimeFormat)

	canonicalURI := target.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	canonicalHeaders := "host:" + target.Host + "\n" +
		amzContentSHAHeader + ":" + UnsignedPayload + "\n" +
		amzDateHeader + ":" + amzDate + "\n"

	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI,
		canonicalQueryString(target.Query()),
		canonicalHeaders,
		signedHeaderList,
		UnsignedPayload,
	}, "\n")

	scope := strings.Join([]string{shortDate, s.region, s.service, requestSuffix}, "/")
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := deriveSigningKey(s.credentials.SecretAccessKey, shortDate, s.region, s.service)
	signature := hmacSHA256Hex(signingKey, stringToSign)

	header := http.Header{}
	header.Set("Host", target.Host)
	header.Set(amzDateHeader, amzDate)
	header.Set(amzContentSHAHeader, UnsignedPayload)
	header.Set("Authorization", signingAlgorithm+
		" Credential="+s.credentials.AccessKeyID+"/"+scope+
		", SignedHeaders="+signedHeaderList+
		", Signature="+signature)

	return &SignedRequest{
		Method: method,
		URL:    target,
		Header: header,
	}, nil
}

// canonicalQueryString re-encodes every key and value per RFC 3986 and sorts
// entries by encoded key, then encoded value. An empty query yields "".
//
// The query arrives through url.Values, so pairs that url.ParseQuery rejects
// (for example a semicolon separator) never reach the canonical form. A caller
// forwarding the raw query unchanged will then send a signature that does not
// cover those pairs, and the origin rejects the request.
func canonicalQueryString(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	type pair struct{ key, value string }
	pairs := make([]pair, 0, len(query))
	for key, values := range query {
		encodedKey := uriEncode(key)
		for _, value := range values {
			pairs = append(pairs, pair{key: encodedKey, value: uriEncode(value)})
		}
	}
	slices.SortFunc(pairs, func(a, b pair) int {
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
		return strings.Compare(a.value, b.value)
	})

	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p.key)
		sb.WriteByte('=')
		sb.WriteString(p.value)
	}
	return sb.String()
}

const upperhex = "0123456789ABCDEF"

// uriEncode percent-encodes everything outside the RFC 3986 unreserved set.
// Unlike url.QueryEscape this encodes space as %20 and does not spare
// the characters ! ' ( ) *, which the verifier encodes too.
func uriEncode(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(upperhex[c>>4])
			sb.WriteByte(upperhex[c&0xf])
		}
	}
	return sb.String()
}
