package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/metrics"
	"github.com/mailsift/sender-patterns/internal/utils"
)

const (
	// maxSenderThreads caps how many threads are pulled per sender.
	maxSenderThreads = 10
	// minPatternMessages is the evidence floor: senders with fewer one-way
	// messages across all fetched threads are left unanalyzed for now.
	minPatternMessages = 3
)

// PatternService is the orchestrator for sender pattern analysis. It runs one
// detached task per trigger and keeps every durable effect behind unique-key
// upserts, so duplicate triggers and concurrent worker instances are safe.
type PatternService struct {
	oracle      PatternOracle
	fetcher     ThreadFetcher
	credentials CredentialProvider
	store       Store
	logger      *zap.Logger
	metrics     *metrics.Metrics
	taskTimeout time.Duration
}

// NewPatternService creates a new pattern analysis service
func NewPatternService(
	oracle PatternOracle,
	fetcher ThreadFetcher,
	credentials CredentialProvider,
	store Store,
	logger *zap.Logger,
	m *metrics.Metrics,
	taskTimeout time.Duration,
) *PatternService {
	return &PatternService{
		oracle:      oracle,
		fetcher:     fetcher,
		credentials: credentials,
		store:       store,
		logger:      logger,
		metrics:     m,
		taskTimeout: taskTimeout,
	}
}

// Enqueue starts sender analysis as a detached background task and returns
// immediately. The triggering caller never learns the outcome; failures are
// logged and counted here.
func (s *PatternService) Enqueue(accountID, senderEmail string) {
	s.metrics.TriggersAccepted.Inc()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout)
		defer cancel()

		start := time.Now()
		if err := s.AnalyzeSender(ctx, accountID, senderEmail); err != nil {
			s.metrics.AnalysisFailures.Inc()
			s.logger.Error("Sender analysis failed",
				zap.String("account_id", accountID),
				zap.String("sender", senderEmail),
				zap.Error(err))
			return
		}
		s.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}()
}

// AnalyzeSender runs one full analysis pass for a sender. It is idempotent:
// once a sender check is recorded as analyzed, repeated calls are cheap no-ops
// with zero network traffic. Early completions for insufficient evidence
// (no threads, conversation detected, too few messages) deliberately skip the
// ledger write so the sender stays eligible for a future trigger.
func (s *PatternService) AnalyzeSender(ctx context.Context, accountID, senderEmail string) error {
	sender := utils.NormalizeAddress(senderEmail)
	if sender == "" {
		return fmt.Errorf("unparseable sender address %q", senderEmail)
	}

	check, err := s.store.GetSenderCheck(ctx, accountID, sender)
	if err != nil {
		return fmt.Errorf("failed to look up sender check: %w", err)
	}
	if check != nil && check.Analyzed {
		s.logger.Debug("Sender already analyzed, skipping",
			zap.String("account_id", accountID),
			zap.String("sender", sender))
		return nil
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		s.logger.Info("Account not found, skipping analysis",
			zap.String("account_id", accountID),
			zap.String("sender", sender))
		return nil
	}

	token, err := s.credentials.AccessToken(ctx, account)
	if errors.Is(err, ErrNoCredentials) {
		// No ledger write: a retry after the user reconnects must still run.
		s.logger.Info("Account has no valid credentials, skipping analysis",
			zap.String("account_id", accountID),
			zap.String("sender", sender))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	threads, err := s.fetcher.FetchThreads(ctx, token, sender, maxSenderThreads)
	if err != nil {
		return fmt.Errorf("failed to fetch threads: %w", err)
	}
	if len(threads) == 0 {
		s.logger.Debug("No threads from sender yet",
			zap.String("account_id", accountID),
			zap.String("sender", sender))
		return nil
	}

	msgs := onewayMessages(threads, sender)
	if len(msgs) == 0 {
		s.logger.Info("Two-way conversation detected, sender not eligible",
			zap.String("account_id", accountID),
			zap.String("sender", sender))
		return nil
	}
	if len(msgs) < minPatternMessages {
		s.logger.Debug("Not enough messages to learn a pattern",
			zap.String("account_id", accountID),
			zap.String("sender", sender),
			zap.Int("messages", len(msgs)))
		return nil
	}

	candidates, err := s.store.CandidateRules(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load candidate rules: %w", err)
	}

	var matched string
	if len(candidates) > 0 {
		matched, err = s.oracle.DetectPattern(ctx, msgs, account, candidates)
		if err != nil {
			return fmt.Errorf("pattern detection failed: %w", err)
		}
	}

	if matched != "" {
		if err := s.store.RecordPattern(ctx, accountID, matched, sender); err != nil {
			return fmt.Errorf("failed to record pattern: %w", err)
		}
		s.metrics.PatternsRecorded.Inc()
		s.logger.Info("Recorded sender pattern",
			zap.String("account_id", accountID),
			zap.String("sender", sender),
			zap.String("rule", matched))
	} else {
		s.logger.Info("No matching rule for sender",
			zap.String("account_id", accountID),
			zap.String("sender", sender),
			zap.Int("messages", len(msgs)),
			zap.Int("candidates", len(candidates)))
	}

	// The only branch that closes the sender out. Reached on match, no match,
	// and the degenerate no-candidate-rules case alike.
	if err := s.store.UpsertSenderCheck(ctx, &SenderCheck{
		AccountID:      accountID,
		SenderEmail:    sender,
		Analyzed:       true,
		LastAnalyzedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to record sender check: %w", err)
	}
	return nil
}
