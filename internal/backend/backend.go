// Package backend opens the store connection selected by configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jacentio/trove/internal/config"
	"github.com/jacentio/trove/store"
	"github.com/jacentio/trove/store/dynamo"
	"github.com/jacentio/trove/store/memory"
	"github.com/jacentio/trove/store/mongo"
)

// Backend is an opened connection registered under its configured name.
type Backend struct {
	Registry *store.Registry
	Name     string
	Conn     store.Connection

	close func(context.Context) error
}

// Open connects to the configured backend and registers the connection.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Backend{
		Registry: store.NewRegistry(),
		Name:     cfg.ConnectionName,
		close:    func(context.Context) error { return nil },
	}

	switch cfg.Backend {
	case config.BackendMemory:
		b.Conn = memory.New(memory.WithLogger(logger))

	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, dynamo.ClientConfig{
			Region:          cfg.DynamoDB.Region,
			Endpoint:        cfg.DynamoDB.Endpoint,
			AccessKeyID:     cfg.DynamoDB.AccessKeyID,
			SecretAccessKey: cfg.DynamoDB.SecretAccessKey,
			SessionToken:    cfg.DynamoDB.SessionToken,
		})
		if err != nil {
			return nil, err
		}
		dc := dynamo.DefaultConfig()
		dc.TablePrefix = cfg.DynamoDB.TablePrefix
		if cfg.Timeout > 0 {
			dc.OperationTimeout = cfg.Timeout
		}
		b.Conn = dynamo.New(client, dc, dynamo.WithLogger(logger))

	case config.BackendMongoDB:
		mc := mongo.DefaultConfig()
		if cfg.Timeout > 0 {
			mc.OperationTimeout = cfg.Timeout
		}
		conn, err := mongo.Connect(ctx, mongo.ClientConfig{
			URL:            cfg.MongoDB.URL,
			Database:       cfg.MongoDB.Database,
			ConnectTimeout: cfg.Timeout,
		}, mc, mongo.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		b.Conn = conn
		b.close = conn.Close

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}

	if err := b.Registry.Register(b.Conn, b.Name); err != nil {
		_ = b.close(ctx)
		return nil, err
	}

	logger.Debug("backend opened",
		zap.String("backend", cfg.Backend),
		zap.String("connection", b.Name),
	)
	return b, nil
}

// Close releases the underlying client, if the backend owns one.
func (b *Backend) Close(ctx context.Context) error {
	if b.Registry != nil {
		b.Registry.Unregister(b.Name)
	}
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}
