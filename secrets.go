package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// DBSecret is the JSON document RDS stores for cluster credentials.
type DBSecret struct {
	Engine   string          `json:"engine"`
	Host     string          `json:"host"`
	Port     json.RawMessage `json:"port"`
	Username string          `json:"username"`
	Password string          `json:"password"`
	DBName   string          `json:"dbname"`
}

// LoadDBSecret fetches and decodes the credentials stored at secretARN.
func LoadDBSecret(ctx context.Context, client secretsAPI, secretARN string) (*DBSecret, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read database secret: %w", err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("database secret %s has no string value", secretARN)
	}

	var secret DBSecret
	if err := json.Unmarshal([]byte(*out.SecretString), &secret); err != nil {
		return nil, fmt.Errorf("failed to decode database secret: %w", err)
	}
	return &secret, nil
}

// Database returns the secret's dbname. The RDS Data API needs nothing else
// from the secret.
func (s *DBSecret) Database() (string, error) {
	if s.DBName == "" {
		return "", errors.New("database secret has no dbname")
	}
	return s.DBName, nil
}

// port returns the port as text. RDS writes it as a number, hand-made
// secrets often as a string.
func (s *DBSecret) port() string {
	raw := strings.Trim(strings.TrimSpace(string(s.Port)), `"`)
	if raw == "" || raw == "null" {
		return "5432"
	}
	return raw
}

// PostgresDSN renders a lib/pq connection URL. database overrides the
// secret's dbname when set. Host and username are required.
func (s *DBSecret) PostgresDSN(database string) (string, error) {
	if s.Host == "" || s.Username == "" {
		return "", errors.New("database secret is missing host or username")
	}
	if database == "" {
		database = s.DBName
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.Username, s.Password),
		Host:     s.Host + ":" + s.port(),
		Path:     "/" + database,
		RawQuery: "sslmode=require",
	}
	return u.String(), nil
}
