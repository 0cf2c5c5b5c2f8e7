package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type TwitterSecretData struct {
	BearerToken       string `json:"bearerToken"`
	AccessToken       string `json:"accessToken"`
	AccessTokenSecret string `json:"accessTokenSecret"`
	ConsumerKey       string `json:"consumerKey"`
	ConsumerSecret    string `json:"consumerSecret"`
}

type DetectionSecretData struct {
	ApiKey string `json:"apiKey"`
}

type EnrichmentSecretData struct {
	ApiKey string `json:"apiKey"`
}

type PostgresSecretData struct {
	ConnectionString string `json:"connectionString"`
}

var ErrEmptySecret = errors.New("secret has no string value")

// SecretGetter is the slice of the Secrets Manager client the bot needs.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecret fetches the JSON secret stored at path and decodes it into T.
func LoadSecret[T any](ctx context.Context, getter SecretGetter, path string) (T, error) {
	var secret T
	result, err := getter.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(path)})
	if err != nil {
		return secret, fmt.Errorf("get secret %s: %w", path, err)
	}
	if result.SecretString == nil {
		return secret, fmt.Errorf("%w: %s", ErrEmptySecret, path)
	}
	if err := json.Unmarshal([]byte(*result.SecretString), &secret); err != nil {
		return secret, fmt.Errorf("secret %s read error: %w", path, err)
	}
	return secret, nil
}
