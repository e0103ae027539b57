// Package credentials resolves the bearer token sent to NetSuite.
//
// The token is issued out of band; recpurge only reads it, either from an
// environment variable or from an AWS Secrets Manager secret.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

var (
	// ErrEmptyToken is returned when a source holds no token.
	ErrEmptyToken = errors.New("bearer token is empty")

	// ErrSecretNotFound is returned when the secret id does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrAccessDenied is returned when the AWS identity cannot read the secret.
	ErrAccessDenied = errors.New("access denied to secret")
)

// Source yields a bearer token.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Env reads the token from an environment variable.
type Env struct {
	Name string
}

func (e Env) Token(ctx context.Context) (string, error) {
	tok := strings.TrimSpace(os.Getenv(e.Name))
	if tok == "" {
		return "", fmt.Errorf("environment variable %s: %w", e.Name, ErrEmptyToken)
	}
	return tok, nil
}

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads the token from an AWS Secrets Manager secret.
// If Field is set the secret is a JSON object and the token is that member.
type SecretsManager struct {
	API      SecretsAPI
	SecretID string
	Field    string
	Logger   *slog.Logger
}

// NewSecretsManager builds a source using the default AWS credential chain.
// An empty region defers to the chain (AWS_REGION, shared config).
func NewSecretsManager(ctx context.Context, region, secretID, field string, logger *slog.Logger) (*SecretsManager, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SecretsManager{
		API:      secretsmanager.NewFromConfig(cfg),
		SecretID: secretID,
		Field:    field,
		Logger:   logger,
	}, nil
}

func (s *SecretsManager) Token(ctx context.Context) (string, error) {
	if s.SecretID == "" {
		return "", errors.New("secret id is required")
	}
	if s.Logger != nil {
		s.Logger.Debug("retrieving token secret", "secret_id", s.SecretID)
	}

	out, err := s.API.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.SecretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ResourceNotFoundException":
				return "", fmt.Errorf("secret %s: %w", s.SecretID, ErrSecretNotFound)
			case "AccessDeniedException":
				return "", fmt.Errorf("secret %s: %w", s.SecretID, ErrAccessDenied)
			}
			return "", fmt.Errorf("secret %s: %s: %s", s.SecretID, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("secret %s: %w", s.SecretID, err)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	}

	if s.Field != "" {
		var doc map[string]any
		if err := json.Unmarshal([]byte(value), &doc); err != nil {
			return "", fmt.Errorf("secret %s: field %s: value is not a JSON object", s.SecretID, s.Field)
		}
		v, _ := doc[s.Field].(string)
		value = v
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("secret %s: %w", s.SecretID, ErrEmptyToken)
	}
	return value, nil
}
