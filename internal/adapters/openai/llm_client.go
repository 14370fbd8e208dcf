package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/core"
	"github.com/mailsift/sender-patterns/internal/utils"
)

// OpenAIClient is an implementation of the PatternOracle interface using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// patternReply represents the structured response from the LLM
type patternReply struct {
	MatchedRule string `json:"matched_rule"`
}

const promptFormat = `You are an email organization assistant. The mailbox owner (%s) receives mail from a single sender. Every message below is one-way: the sender writes, the owner never replies. Decide which one of the owner's rules the sender's mail belongs to.

Rules:
%s
Messages:
%s
Respond with a JSON object containing:
- matched_rule: the exact name of the single best matching rule, or null if no rule clearly matches

Respond only with the JSON object and nothing else.`

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// DetectPattern asks the model which candidate rule the sender's messages
// match. Transport errors propagate; a reply the model botched degrades to
// no match.
func (c *OpenAIClient) DetectPattern(ctx context.Context, msgs []core.Message, account *core.Account, candidates []core.Rule) (string, error) {
	prompt := buildPrompt(msgs, account, candidates, c.textProcessor, c.maxBodySize)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email organization assistant. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: "json"}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	name, err := decodeReply(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("Discarding unparseable oracle reply", zap.Error(err))
		return "", nil
	}
	return resolveRule(name, candidates, c.logger), nil
}

// buildPrompt renders candidate rules and messages into the oracle prompt.
func buildPrompt(msgs []core.Message, account *core.Account, candidates []core.Rule, tp *utils.TextProcessor, maxBodySize int) string {
	var rules strings.Builder
	for _, r := range candidates {
		fmt.Fprintf(&rules, "- %s: %s\n", r.Name, r.Instructions)
	}

	var rendered strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&rendered, "From: %s\nSubject: %s\nBody:\n%s\n---\n",
			m.From, m.Subject, tp.ProcessText(m.Body, maxBodySize))
	}

	return fmt.Sprintf(promptFormat, account.Email, rules.String(), rendered.String())
}

// decodeReply parses the model's JSON reply, tolerating surrounding prose.
func decodeReply(responseText string) (string, error) {
	var reply patternReply
	if err := json.Unmarshal([]byte(responseText), &reply); err != nil {
		jsonStart := strings.IndexByte(responseText, '{')
		jsonEnd := strings.LastIndexByte(responseText, '}')
		if jsonStart < 0 || jsonEnd <= jsonStart {
			return "", fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
		if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &reply); err != nil {
			return "", fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}
	return reply.MatchedRule, nil
}

// resolveRule maps the model's answer onto the candidate set. Anything
// outside it counts as no match.
func resolveRule(name string, candidates []core.Rule, logger *zap.Logger) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "none") || strings.EqualFold(name, "null") {
		return ""
	}
	for _, r := range candidates {
		if strings.EqualFold(r.Name, name) {
			return r.Name
		}
	}
	logger.Warn("Oracle named a rule outside the candidate set", zap.String("rule", name))
	return ""
}
