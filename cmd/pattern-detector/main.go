package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/core"
	"github.com/mailsift/sender-patterns/internal/di"
)

// detectInput is the JSON document the detector reads: the mailbox owner,
// the candidate rules, and a batch of messages from a single sender.
type detectInput struct {
	AccountEmail string `json:"account_email"`
	Rules        []struct {
		Name         string `json:"name"`
		Instructions string `json:"instructions"`
	} `json:"rules"`
	Messages []struct {
		From    string `json:"from"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	} `json:"messages"`
}

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *di.CLIFlags, logger *zap.Logger, oracle core.PatternOracle) error {
	defer logger.Sync()

	// Read input from file or stdin
	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file %s: %w", flags.InputFile, err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading input from file", zap.String("file", flags.InputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading input from stdin")
	}

	var input detectInput
	if err := json.NewDecoder(reader).Decode(&input); err != nil {
		return fmt.Errorf("failed to parse input JSON: %w", err)
	}
	if len(input.Messages) == 0 {
		return fmt.Errorf("input contains no messages")
	}
	if len(input.Rules) == 0 {
		return fmt.Errorf("input contains no rules")
	}

	account := &core.Account{Email: input.AccountEmail}
	candidates := make([]core.Rule, 0, len(input.Rules))
	for _, r := range input.Rules {
		candidates = append(candidates, core.Rule{Name: r.Name, Instructions: r.Instructions})
	}
	msgs := make([]core.Message, 0, len(input.Messages))
	for _, m := range input.Messages {
		msgs = append(msgs, core.Message{From: m.From, Subject: m.Subject, Body: m.Body})
	}

	fmt.Printf("\n=== Input Summary ===\n")
	fmt.Printf("Account: %s\n", input.AccountEmail)
	fmt.Printf("Rules: %d\n", len(candidates))
	fmt.Printf("Messages: %d\n", len(msgs))
	fmt.Printf("\n=== Detection ===\n")
	fmt.Printf("Provider: %s\n", flags.Provider)

	startTime := time.Now()
	matched, err := oracle.DetectPattern(context.Background(), msgs, account, candidates)
	if err != nil {
		return fmt.Errorf("pattern detection failed: %w", err)
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== Results ===\n")
	if matched == "" {
		fmt.Printf("Matched rule: none\n")
	} else {
		fmt.Printf("Matched rule: %s\n", matched)
	}
	fmt.Printf("Processing time: %v\n", duration)

	// Close any resources that need closing
	if closer, ok := oracle.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
	return nil
}
