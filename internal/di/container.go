package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/adapters/gmail"
	"github.com/mailsift/sender-patterns/internal/adapters/httpapi"
	"github.com/mailsift/sender-patterns/internal/config"
	"github.com/mailsift/sender-patterns/internal/core"
	"github.com/mailsift/sender-patterns/internal/factory"
	"github.com/mailsift/sender-patterns/internal/logging"
	"github.com/mailsift/sender-patterns/internal/metrics"
	"github.com/mailsift/sender-patterns/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(metrics.New); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewOracleFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register pattern oracle
	if err := container.Provide(func(f *factory.OracleFactory) (core.PatternOracle, error) {
		return f.CreateOracle()
	}); err != nil {
		return nil, err
	}

	// Register store
	if err := container.Provide(func(f *factory.StoreFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register Gmail thread fetcher
	if err := container.Provide(func(logger *zap.Logger) core.ThreadFetcher {
		return gmail.NewThreadFetcher(logger)
	}); err != nil {
		return nil, err
	}

	// Register credential provider
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.CredentialProvider {
		gmailCfg := cfg.GetGmail()
		return gmail.NewOAuthCredentials(gmailCfg.ClientID, gmailCfg.ClientSecret, logger)
	}); err != nil {
		return nil, err
	}

	// Register task timeout
	if err := container.Provide(func(cfg *config.Config) (time.Duration, error) {
		return cfg.GetDuration("engine.task_timeout")
	}); err != nil {
		return nil, err
	}

	// Register pattern service
	if err := container.Provide(core.NewPatternService); err != nil {
		return nil, err
	}

	// Register HTTP server
	if err := container.Provide(func(
		svc *core.PatternService,
		store core.Store,
		cfg *config.Config,
		logger *zap.Logger,
	) *httpapi.Server {
		serverCfg := cfg.GetServer()
		return httpapi.NewServer(svc, store, serverCfg.ListenAddress, serverCfg.InternalSecret, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
