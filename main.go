package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/Wh1isper/s3-public-proxy/internal/config"
	"github.com/Wh1isper/s3-public-proxy/internal/s3proxy"
)

var (
	host       string
	port       string
	configFile string

	endpoint  string
	bucket    string
	accessKey string
	secretKey string
	region    string

	policyFile string
	caFile     string
)

func init() {
	flag.StringVar(&host, "host", getEnvOrDefault("S3_PROXY_HOST", ""), "Host to listen on")
	flag.StringVar(&port, "port", getEnvOrDefault("S3_PROXY_PORT", "8080"), "Port to listen on")
	flag.StringVar(&configFile, "config", getEnvOrDefault("S3_PROXY_CONFIG", ""), "YAML config file; flags and env are ignored when set")

	flag.StringVar(&endpoint, "endpoint", getEnvOrDefault("S3_ENDPOINT", ""), "Origin S3 endpoint, scheme optional (https assumed)")
	flag.StringVar(&bucket, "bucket", getEnvOrDefault("S3_BUCKET", ""), "Bucket exposed by the gateway")
	flag.StringVar(&accessKey, "access-key", getEnvOrDefault("S3_ACCESS_KEY", ""), "Origin S3 access key ID")
	flag.StringVar(&secretKey, "secret-key", getEnvOrDefault("S3_SECRET_KEY", ""), "Origin S3 secret access key")
	flag.StringVar(&region, "region", getEnvOrDefault("S3_REGION", "us-east-1"), "Origin S3 signing region")

	flag.StringVar(&policyFile, "policy", getEnvOrDefault("S3_PROXY_POLICY", ""), "Optional Rego access policy file")
	flag.StringVar(&caFile, "ca-file", getEnvOrDefault("S3_PROXY_CA_FILE", ""), "Additional CA certificates for the origin")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			slog.Default().Error("Failed to load config", "path", configFile, "error", err)
			os.Exit(1)
		}

		host = cfg.Host.Value
		if cfg.Port.Value != "" {
			port = cfg.Port.Value
		}
		endpoint = cfg.Endpoint.Value
		bucket = cfg.Bucket.Value
		accessKey = cfg.AccessKey.Value
		secretKey = cfg.SecretKey.Value
		if cfg.Region.Value != "" {
			region = cfg.Region.Value
		}
		policyFile = cfg.Policy.Value
		caFile = cfg.CAFile.Value
	}

	if endpoint == "" || bucket == "" || accessKey == "" || secretKey == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := []s3proxy.S3ProxyOptFunc{
		s3proxy.WithOrigin(endpoint, region),
		s3proxy.WithBucket(bucket),
		s3proxy.WithCredentials(aws.Credentials{
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
		}),
	}
	if policyFile != "" {
		opts = append(opts, s3proxy.WithAccessPolicy(policyFile))
	}
	if caFile != "" {
		opts = append(opts, s3proxy.WithAdditionalCACert(caFile))
	}

	proxy, err := s3proxy.NewS3Proxy(opts...)
	if err != nil {
		slog.Default().Error("Failed to create public S3 proxy", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	slog.Default().Info("Starting public S3 proxy", "addr", addr, "endpoint", endpoint, "bucket", bucket, "region", region)
	if err := proxy.ListenAndServe(addr); err != nil {
		slog.Default().Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
