// Package awsutil loads the AWS configuration shared by the sync tools.
package awsutil

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hephy-analysis/analysis-tools/internal/pkg/env"
)

// Config selects the region and, for local stacks such as LocalStack or
// MinIO, an endpoint with static credentials.
type Config struct {
	Region string

	// Endpoint overrides the service endpoints when set.
	Endpoint string

	// AccessKeyID and SecretAccessKey are used as static credentials when
	// both are set. Otherwise the default credential chain applies.
	AccessKeyID     string
	SecretAccessKey string
}

// ConfigFromEnv reads AWS_REGION, AWS_ENDPOINT_URL, AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY.
func ConfigFromEnv() Config {
	return Config{
		Region:          env.Get("AWS_REGION", "eu-central-1"),
		Endpoint:        env.Get("AWS_ENDPOINT_URL", ""),
		AccessKeyID:     env.Get("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.Get("AWS_SECRET_ACCESS_KEY", ""),
	}
}

// Load builds an aws.Config from cfg.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return awsCfg, nil
}

// S3Options returns the client options for cfg. Custom endpoints get
// path-style addressing, which local object stores require.
func S3Options(cfg Config) []func(*s3.Options) {
	if cfg.Endpoint == "" {
		return nil
	}
	return []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = true
		},
	}
}
