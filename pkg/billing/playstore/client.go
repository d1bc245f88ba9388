package playstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// Client talks to the Google Play Developer API for one application.
type Client struct {
	svc         *androidpublisher.Service
	packageName string
}

// New builds a Client from cfg, authenticating with the configured service
// account or application default credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.PackageName == "" {
		return nil, ErrMissingPackageName
	}

	creds, err := credentials(ctx, cfg)
	if err != nil {
		return nil, errors.Join(ErrCredentials, err)
	}
	opts := []option.ClientOption{option.WithCredentials(creds)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := androidpublisher.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("playstore: create service: %w", err)
	}
	return NewWithService(svc, cfg.PackageName), nil
}

// NewWithService wraps an already configured API service.
func NewWithService(svc *androidpublisher.Service, packageName string) *Client {
	return &Client{svc: svc, packageName: packageName}
}

func credentials(ctx context.Context, cfg Config) (*google.Credentials, error) {
	switch {
	case cfg.CredentialsJSON != "":
		return google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), androidpublisher.AndroidpublisherScope)
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return google.CredentialsFromJSON(ctx, data, androidpublisher.AndroidpublisherScope)
	default:
		return google.FindDefaultCredentials(ctx, androidpublisher.AndroidpublisherScope)
	}
}

// PackageName returns the application id the client is bound to.
func (c *Client) PackageName() string { return c.packageName }
