package di

import (
	"context"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/database/db_client"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/database/memory"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/database/mongostore"
	pgrepo "github.com/mufasadev/coin-settlement/internal/infrastructure/database/repositories"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Storage is the ledger backend selected by STORE_DRIVER.
type Storage struct {
	Transactions repositories.TransactionRepository
	Wallets      repositories.WalletRepository
	Referrals    repositories.ReferralRepository
	close        func(ctx context.Context) error
}

func (s *Storage) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStorage connects the configured backend and prepares its schema when Store.Migrate is set.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	currency := cfg.Settlement.WalletCurrency

	switch cfg.Store.Driver {
	case DriverPostgres:
		db, err := db_client.NewPGClient(cfg.PostgreSQL).Connect()
		if err != nil {
			return nil, err
		}
		if cfg.Store.Migrate() {
			if err = db_client.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &Storage{
			Transactions: pgrepo.NewTransactionRepositoryImpl(db, currency),
			Wallets:      pgrepo.NewWalletRepositoryImpl(db),
			Referrals:    pgrepo.NewReferralRepositoryImpl(db, currency),
			close: func(context.Context) error {
				db.Close()
				return nil
			},
		}, nil

	case DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		store := mongostore.NewStore(client, cfg.Mongo.Database, currency)
		if cfg.Store.Migrate() {
			if err = store.EnsureIndexes(ctx); err != nil {
				client.Disconnect(ctx)
				return nil, err
			}
		}
		return &Storage{
			Transactions: store.Transactions(),
			Wallets:      store.Wallets(),
			Referrals:    store.Referrals(),
			close:        client.Disconnect,
		}, nil

	case DriverMemory:
		store := memory.NewStore(currency)
		return &Storage{
			Transactions: store.Transactions(),
			Wallets:      store.Wallets(),
			Referrals:    store.Referrals(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
