package awsutil

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	cfg := ConfigFromEnv()
	if cfg.Region != "eu-central-1" {
		t.Errorf("Region = %s, expected default eu-central-1", cfg.Region)
	}
	if cfg.Endpoint != "http://localhost:4566" || cfg.AccessKeyID != "test" || cfg.SecretAccessKey != "secret" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoad_StaticCredentialsAndEndpoint(t *testing.T) {
	cfg := Config{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
	}

	awsCfg, err := Load(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if awsCfg.Region != "eu-west-1" {
		t.Errorf("Region = %s", awsCfg.Region)
	}
	if aws.ToString(awsCfg.BaseEndpoint) != cfg.Endpoint {
		t.Errorf("BaseEndpoint = %s", aws.ToString(awsCfg.BaseEndpoint))
	}

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if creds.AccessKeyID != "test" || creds.SecretAccessKey != "secret" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestS3Options(t *testing.T) {
	if opts := S3Options(Config{}); len(opts) != 0 {
		t.Errorf("expected no options without endpoint, got %d", len(opts))
	}

	opts := S3Options(Config{Endpoint: "http://localhost:9000"})
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
	var o s3.Options
	opts[0](&o)
	if !o.UsePathStyle {
		t.Error("expected path-style addressing for custom endpoints")
	}
}
