// SPDX-License-Identifier: AGPL-3.0-only
package s3proxy

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	transport "github.com/aws/smithy-go/endpoints"
	"github.com/google/uuid"
	minio "github.com/minio/minio-go/v7"
	mcredentials "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestProxyMinio runs the gateway against a real MinIO origin: the fixture
// object is written with credentials, then read back anonymously through
// the proxy.
func TestProxyMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	accessKey := uuid.New().String()
	secretKey := uuid.New().String()
	bucket := "test-" + uuid.New().String()
	key := "media/hello world.txt"

	endpoint := runMinioContainer(t, accessKey, secretKey)

	// write the fixture with real credentials
	u, err := url.Parse(endpoint)
	require.NoError(t, err)
	minioClient, err := minio.New(u.Host, &minio.Options{
		Creds:  mcredentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	require.NoError(t, err)

	err = minioClient.MakeBucket(t.Context(), bucket, minio.MakeBucketOptions{})
	require.NoError(t, err)

	content := make([]byte, 1024*1024)
	_, err = rand.Read(content)
	require.NoError(t, err)

	_, err = minioClient.PutObject(t.Context(), bucket, key,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	proxy, err := NewS3Proxy(
		WithOrigin(endpoint, "us-east-1"),
		WithBucket(bucket),
		WithCredentials(aws.Credentials{
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
		}),
	)
	require.NoError(t, err)
	s := httptest.NewServer(proxy)
	t.Cleanup(s.Close)

	t.Run("AnonymousGet", func(t *testing.T) {
		res, err := http.Get(s.URL + "/media/hello%20world.txt")
		require.NoError(t, err)
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
		require.Equal(t, "public, max-age=86400", res.Header.Get("Cache-Control"))

		got, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		require.Equal(t, content, got)
	})

	t.Run("AnonymousHead", func(t *testing.T) {
		res, err := http.Head(s.URL + "/media/hello%20world.txt")
		require.NoError(t, err)
		res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, int64(len(content)), res.ContentLength)
	})

	t.Run("MissingObject", func(t *testing.T) {
		res, err := http.Get(s.URL + "/no/such/object")
		require.NoError(t, err)
		res.Body.Close()

		// origin status passes through untouched
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("AWSSdk", func(t *testing.T) {
		// the SDK signs its requests; the gateway ignores that and
		// re-signs with its own credentials
		cfg, err := awsconfig.LoadDefaultConfig(t.Context(),
			awsconfig.WithRegion("us-east-1"),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				uuid.New().String(), uuid.New().String(), "")),
		)
		require.NoError(t, err)
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = true
			o.EndpointResolverV2 = &tFlatResolver{url: s.URL}
		})

		get, err := client.GetObject(t.Context(), &s3.GetObjectInput{
			Bucket: aws.String("ignored"),
			Key:    aws.String(key),
		})
		require.NoError(t, err)
		defer get.Body.Close()

		got, err := io.ReadAll(get.Body)
		require.NoError(t, err)
		require.Equal(t, content, got)
	})
}

// tFlatResolver points the SDK at the gateway, which has no bucket segment
// in its public surface.
type tFlatResolver struct{ url string }

func (r *tFlatResolver) ResolveEndpoint(ctx context.Context, params s3.EndpointParameters) (transport.Endpoint, error) {
	u, err := url.Parse(r.url)
	if err != nil {
		return transport.Endpoint{}, err
	}
	return transport.Endpoint{URI: *u}, nil
}

func runMinioContainer(t *testing.T, accessKey, secretKey string) (endpoint string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForExposedPort(),
	}

	container, err := testcontainers.GenericContainer(t.Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(t.Context())
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(t.Context(), "9000")
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}
