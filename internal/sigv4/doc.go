// Package sigv4 signs bodyless S3 requests with AWS Signature Version 4.
//
// The signer covers exactly the header-based, unsigned-payload flavor this
// gateway needs: the canonical request is built from the method, the escaped
// URL path, the sorted and percent-encoded query string, and a fixed header
// set of host, x-amz-content-sha256 (always the UNSIGNED-PAYLOAD sentinel)
// and x-amz-date. The signing key is the usual four-step HMAC chain over
// "AWS4"+secret, date, region and service, scoped per day.
//
// See https://docs.aws.amazon.com/IAM/latest/UserGuide/signing-elements.html
// for the authoritative description of the algorithm.
package sigv4
