package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/open-iot-service-platform/go-iotkit/internal/tokencache"
	"github.com/open-iot-service-platform/go-iotkit/iotkit"
)

// session wires the API client to a token cache so repeated CLI
// invocations reuse the issued token instead of re-authenticating.
type session struct {
	client *iotkit.Client
	cfg    iotkit.Config
	store  tokencache.Store
}

func newSession(ctx context.Context) (*session, error) {
	cfg := iotkit.ConfigFromEnv()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("IOTKIT_URL is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("IOTKIT_USERNAME and IOTKIT_PASSWORD are required")
	}

	client, err := iotkit.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	store, err := newTokenStore()
	if err != nil {
		return nil, err
	}

	s := &session{client: client, cfg: cfg, store: store}

	data, err := store.Load(ctx, cfg.Username)
	switch {
	case err == nil:
		token, err := tokencache.Decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("discarding unreadable cached token")
			return s, s.authenticate(ctx)
		}
		client.SetToken(token.Value)
		return s, nil
	case errors.Is(err, tokencache.ErrNotFound):
		return s, s.authenticate(ctx)
	default:
		return nil, fmt.Errorf("load cached token: %w", err)
	}
}

func (s *session) authenticate(ctx context.Context) error {
	if err := s.client.Authenticate(ctx, s.cfg.Username, s.cfg.Password); err != nil {
		return err
	}

	data, err := tokencache.Encode(tokencache.Token{
		SchemaVersion: tokencache.SchemaVersion,
		Username:      s.cfg.Username,
		Value:         s.client.Token(),
	})
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, s.cfg.Username, data); err != nil {
		log.Warn().Err(err).Msg("persist token")
	}
	return nil
}

func (s *session) account() *iotkit.Account {
	accountID := os.Getenv("IOTKIT_ACCOUNT_ID")
	if accountID == "" {
		fatal("account", fmt.Errorf("IOTKIT_ACCOUNT_ID is required"))
	}
	return s.client.Account(accountID, os.Getenv("IOTKIT_ACCOUNT_NAME"))
}

// newTokenStore prefers S3 when configured, falling back to a local
// cache directory.
func newTokenStore() (tokencache.Store, error) {
	if endpoint := os.Getenv("IOTKIT_TOKEN_S3_ENDPOINT"); endpoint != "" {
		return tokencache.NewS3Store(tokencache.S3Config{
			Endpoint:  endpoint,
			Bucket:    os.Getenv("IOTKIT_TOKEN_S3_BUCKET"),
			Prefix:    os.Getenv("IOTKIT_TOKEN_S3_PREFIX"),
			AccessKey: os.Getenv("IOTKIT_TOKEN_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("IOTKIT_TOKEN_S3_SECRET_KEY"),
			Region:    os.Getenv("IOTKIT_TOKEN_S3_REGION"),
		})
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	return tokencache.FileStore{Dir: filepath.Join(cacheDir, "iotkit")}, nil
}
