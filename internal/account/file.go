package account

import (
	"context"
	"fmt"

	"ztgate/internal/config"
)

// FileStore keeps the account inside the gateway config file. Reads go
// through the config snapshot; updates clone the snapshot, rewrite the file
// and publish the clone, so concurrent readers never see a half-written
// account.
type FileStore struct {
	config *config.Store
}

func NewFileStore(configStore *config.Store) *FileStore {
	return &FileStore{config: configStore}
}

func (s *FileStore) Verify(_ context.Context, username, password string) bool {
	admin := s.config.Snapshot().Admin
	return username == admin.Username && compareHash(admin.PasswordHash, password)
}

func (s *FileStore) Update(_ context.Context, username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	cfg := s.config.Snapshot().Clone()
	cfg.Admin.Username = username
	cfg.Admin.PasswordHash = hash

	if err := s.config.Save(cfg); err != nil {
		return fmt.Errorf("persist account: %w", err)
	}
	return nil
}
