package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Secret reference schemes. A config value of the form "env://NAME" or
// "aws-sm://secret-id" is replaced by the referenced secret at startup;
// anything else is taken literally.
const (
	envScheme   = "env://"
	awsSMScheme = "aws-sm://"
)

// SecretProvider resolves named secrets from an external source.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct{}

func (EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("secret %q not found in environment", name)
	}
	return v, nil
}

// AWSProvider reads secrets from AWS Secrets Manager.
type AWSProvider struct {
	client *secretsmanager.Client
}

// NewAWSProvider builds a provider from the ambient AWS configuration
// (credentials chain, region, etc.).
func NewAWSProvider(ctx context.Context) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (p *AWSProvider) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("aws secrets manager: get %q: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("aws secrets manager: secret %q has no string value", name)
	}
	return *out.SecretString, nil
}

// ResolveSecrets replaces secret references in the sensitive fields
// (token.secret, storage.dsn) with their resolved values. The AWS client is
// only constructed when an aws-sm:// reference is present.
func (c *Config) ResolveSecrets(ctx context.Context) error {
	var awsProvider *AWSProvider

	resolve := func(value string) (string, error) {
		switch {
		case strings.HasPrefix(value, envScheme):
			return EnvProvider{}.GetSecret(ctx, strings.TrimPrefix(value, envScheme))
		case strings.HasPrefix(value, awsSMScheme):
			if awsProvider == nil {
				p, err := NewAWSProvider(ctx)
				if err != nil {
					return "", err
				}
				awsProvider = p
			}
			return awsProvider.GetSecret(ctx, strings.TrimPrefix(value, awsSMScheme))
		default:
			return value, nil
		}
	}

	secret, err := resolve(c.Token.Secret)
	if err != nil {
		return fmt.Errorf("resolve token.secret: %w", err)
	}
	c.Token.Secret = secret

	dsn, err := resolve(c.Storage.DSN)
	if err != nil {
		return fmt.Errorf("resolve storage.dsn: %w", err)
	}
	c.Storage.DSN = dsn

	return nil
}
