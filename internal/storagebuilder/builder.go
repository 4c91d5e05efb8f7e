package storagebuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/ldomjan/sharedcal/internal/storage"
	memorystorage "github.com/ldomjan/sharedcal/internal/storage/memory"
	sqlstorage "github.com/ldomjan/sharedcal/internal/storage/sql"
)

const defaultConnectTimeout = 15 * time.Second

type Config struct {
	StorageType    string
	ConnectTimeout time.Duration
	Database       sqlstorage.Config
}

// New builds the backend named by config. The sql backend connects
// eagerly, bounded by ConnectTimeout.
func New(config Config) (storage.Storage, error) {
	switch config.StorageType {
	case "memory":
		return memorystorage.New(), nil
	case "sql":
		timeout := config.ConnectTimeout
		if timeout <= 0 {
			timeout = defaultConnectTimeout
		}
		s := sqlstorage.New(config.Database)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database %s %d: %w",
				config.Database.Host, config.Database.Port, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", config.StorageType)
	}
}
