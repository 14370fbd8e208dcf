package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/adapters/bedrock"
	"github.com/mailsift/sender-patterns/internal/adapters/gemini"
	"github.com/mailsift/sender-patterns/internal/adapters/openai"
	"github.com/mailsift/sender-patterns/internal/config"
	"github.com/mailsift/sender-patterns/internal/core"
	"github.com/mailsift/sender-patterns/internal/utils"
)

// OracleFactory creates pattern oracles
type OracleFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOracleFactory creates a new oracle factory
func NewOracleFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *OracleFactory {
	return &OracleFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateOracle creates a new pattern oracle based on the configuration
func (f *OracleFactory) CreateOracle() (core.PatternOracle, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateOracle()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateOracle()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateOracle()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
