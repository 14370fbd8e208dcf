package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/core"
	"github.com/mailsift/sender-patterns/internal/utils"
)

func TestDecodeReply(t *testing.T) {
	t.Run("clean JSON", func(t *testing.T) {
		name, err := decodeReply(`{"matched_rule": "Newsletters"}`)
		require.NoError(t, err)
		assert.Equal(t, "Newsletters", name)
	})

	t.Run("null match", func(t *testing.T) {
		name, err := decodeReply(`{"matched_rule": null}`)
		require.NoError(t, err)
		assert.Empty(t, name)
	})

	t.Run("JSON wrapped in prose", func(t *testing.T) {
		name, err := decodeReply("Sure, here is my answer:\n```json\n{\"matched_rule\": \"Receipts\"}\n```\n")
		require.NoError(t, err)
		assert.Equal(t, "Receipts", name)
	})

	t.Run("no JSON at all", func(t *testing.T) {
		_, err := decodeReply("I think this sender is a newsletter.")
		require.Error(t, err)
	})
}

func TestResolveRule(t *testing.T) {
	logger := zap.NewNop()
	candidates := []core.Rule{
		{Name: "Newsletters"},
		{Name: "Receipts"},
	}

	t.Run("exact match", func(t *testing.T) {
		assert.Equal(t, "Newsletters", resolveRule("Newsletters", candidates, logger))
	})

	t.Run("case insensitive match returns canonical name", func(t *testing.T) {
		assert.Equal(t, "Receipts", resolveRule("receipts", candidates, logger))
	})

	t.Run("none and null sentinels", func(t *testing.T) {
		assert.Empty(t, resolveRule("none", candidates, logger))
		assert.Empty(t, resolveRule("NULL", candidates, logger))
		assert.Empty(t, resolveRule("  ", candidates, logger))
	})

	t.Run("hallucinated rule rejected", func(t *testing.T) {
		assert.Empty(t, resolveRule("Spam", candidates, logger))
	})
}

func TestBuildPrompt(t *testing.T) {
	tp := utils.NewTextProcessor(zap.NewNop())
	account := &core.Account{Email: "owner@example.com"}
	candidates := []core.Rule{
		{Name: "Newsletters", Instructions: "Weekly digests"},
	}
	msgs := []core.Message{
		{From: "news@example.com", Subject: "Digest #42", Body: "This week in news"},
	}

	prompt := buildPrompt(msgs, account, candidates, tp, 4096)

	assert.Contains(t, prompt, "owner@example.com")
	assert.Contains(t, prompt, "- Newsletters: Weekly digests")
	assert.Contains(t, prompt, "Subject: Digest #42")
	assert.Contains(t, prompt, "This week in news")
	assert.Contains(t, prompt, "matched_rule")
}
