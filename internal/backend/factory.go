package backend

import (
	"context"
	"fmt"
	"time"

	"carteira/internal/ledger/memory"
	"carteira/internal/log"
	"carteira/internal/storage"
)

const mongoDisconnectTimeout = 5 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := storage.ConnectToMongoDB(ctx, config.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	repo := storage.NewMongoRepository(storage.NewMongoProvider(client, config.MongoDatabase))

	f.logger.Info("Initialized MongoDB backend", "database", config.MongoDatabase)

	return &BackendResult{
		Store: repo,
		Cleanup: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
			defer cancel()
			return client.Disconnect(ctx)
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	if config.DataDirectory == "" {
		f.logger.Info("Initialized memory backend with default taxonomy")
		return &BackendResult{Store: memory.New(memory.DefaultDataset())}, nil
	}

	store, err := memory.NewFromDir(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend from %s: %w", config.DataDirectory, err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)

	return &BackendResult{Store: store}, nil
}
