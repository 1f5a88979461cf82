package mainconfig

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/garusis/marcos-assistant/internal/config"
	"github.com/garusis/marcos-assistant/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so the API server and the
// dispatch worker share the same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (aws.Config, error) {
	if logger == nil {
		logger = logging.Default()
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.HasStaticAWSCredentials() {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if cfg.AWSEndpointOverride != "" {
		logger.Info("using AWS endpoint override",
			"endpoint", cfg.AWSEndpointOverride,
			"region", cfg.AWSRegion,
		)
		awsCfg.EndpointResolverWithOptions = localEndpointResolver(cfg.AWSEndpointOverride, cfg.AWSRegion)
	}

	return awsCfg, nil
}

// localEndpointResolver points the SQS and DynamoDB clients at a single
// local endpoint; every other service falls through to the SDK defaults.
func localEndpointResolver(endpoint, region string) aws.EndpointResolverWithOptionsFunc {
	return func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
		switch service {
		case sqs.ServiceID, dynamodb.ServiceID:
			return aws.Endpoint{
				URL:           endpoint,
				PartitionID:   "aws",
				SigningRegion: region,
			}, nil
		default:
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
	}
}
