package di

import (
	"context"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/domain/bonus"
	"github.com/mufasadev/coin-settlement/internal/domain/coins"
	"github.com/mufasadev/coin-settlement/internal/gateways"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/api/handlers"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/cache"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/notify"
	"github.com/mufasadev/coin-settlement/internal/usecases/interactor"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	Registry                     *gateways.Registry
	AdminToken                   string
	WebhookHandler               *handlers.WebhookHandler
	PaymentHandler               *handlers.PaymentHandler
	WalletHandler                *handlers.WalletHandler
	AdminHandler                 *handlers.AdminHandler
	ExpireTransactionsInteractor *interactor.ExpireTransactionsInteractor

	storage  *Storage
	notifier notify.Notifier
	redis    redis.UniversalClient
}

// Dependencies lets callers replace the backends built from config, tests pass a memory
// storage and a fixed registry.
type Dependencies struct {
	Storage  *Storage
	Registry *gateways.Registry
	Deduper  cache.Deduper
	Notifier notify.Notifier
}

// NewContainer connects every backend named in cfg and wires the interactors and handlers.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger := log.GetLogger()

	storage, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps := Dependencies{
		Storage:  storage,
		Registry: gateways.NewRegistryFromConfig(cfg.Gateways),
		Deduper:  cache.NopDeduper{},
		Notifier: notify.NewLogNotifier(),
	}

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb, err = cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			storage.Close(ctx)
			return nil, err
		}
		deps.Deduper = cache.NewWebhookDeduper(rdb, cfg.Redis.TTL())
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, webhook payload dedupe disabled")
	}

	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		deps.Notifier = notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.Kafka))
	}

	c, err := Build(cfg, deps)
	if err != nil {
		deps.Notifier.Close()
		storage.Close(ctx)
		return nil, err
	}
	c.redis = rdb
	logger.Info().
		Str("store", cfg.Store.Driver).
		Interface("providers", c.Registry.Names()).
		Msg("container ready")
	return c, nil
}

// Build wires the interactors and handlers over already opened dependencies.
func Build(cfg *config.Config, deps Dependencies) (*Container, error) {
	rates, err := cfg.Settlement.RateTable()
	if err != nil {
		return nil, fmt.Errorf("currency rates: %w", err)
	}
	tiers, err := bonus.ParseTiers(cfg.Settlement.VIPTiers)
	if err != nil {
		return nil, fmt.Errorf("vip tiers: %w", err)
	}
	if deps.Deduper == nil {
		deps.Deduper = cache.NopDeduper{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier()
	}

	converter := coins.NewConverter(cfg.Settlement.CoinRate(), rates)
	calculator := bonus.NewCalculator(cfg.Settlement.BonusRate(), tiers)
	currency := cfg.Settlement.WalletCurrency
	s := deps.Storage

	vipInteractor := interactor.NewVIPInteractor(s.Transactions, s.Wallets, converter, calculator)
	referralInteractor := interactor.NewReferralInteractor(s.Referrals, s.Transactions, converter, deps.Notifier,
		cfg.Settlement.Threshold(), cfg.Settlement.Reward())
	settlementInteractor := interactor.NewSettlementInteractor(s.Transactions, converter, calculator,
		vipInteractor, referralInteractor, deps.Notifier)

	webhookInteractor := interactor.NewWebhookInteractor(s.Transactions, settlementInteractor, deps.Deduper)
	paymentInteractor := interactor.NewPaymentInteractor(s.Transactions, s.Wallets, deps.Registry, converter,
		settlementInteractor, currency, cfg.Settlement.DefaultProvider)
	walletInteractor := interactor.NewWalletInteractor(s.Wallets, s.Transactions, currency)
	adminInteractor := interactor.NewAdminInteractor(s.Transactions, s.Wallets, converter, settlementInteractor,
		referralInteractor, currency)
	expireInteractor := interactor.NewExpireTransactionsInteractor(s.Transactions, settlementInteractor, cfg.Process)

	return &Container{
		Registry:                     deps.Registry,
		AdminToken:                   cfg.Admin.Token,
		WebhookHandler:               handlers.NewWebhookHandler(webhookInteractor),
		PaymentHandler:               handlers.NewPaymentHandler(paymentInteractor),
		WalletHandler:                handlers.NewWalletHandler(walletInteractor, referralInteractor),
		AdminHandler:                 handlers.NewAdminHandler(adminInteractor),
		ExpireTransactionsInteractor: expireInteractor,
		storage:                      s,
		notifier:                     deps.Notifier,
	}, nil
}

// Close flushes the notifier and releases the storage and cache connections.
func (c *Container) Close(ctx context.Context) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(c.notifier.Close())
	if c.redis != nil {
		keep(c.redis.Close())
	}
	if c.storage != nil {
		keep(c.storage.Close(ctx))
	}
	return first
}
