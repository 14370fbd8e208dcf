package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mailsift/sender-patterns/internal/core"
	"github.com/mailsift/sender-patterns/internal/utils"
)

// GeminiClient is an implementation of the PatternOracle interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
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

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// DetectPattern asks the model which candidate rule the sender's messages
// match. Transport errors propagate; an unparseable reply degrades to no
// match.
func (c *GeminiClient) DetectPattern(ctx context.Context, msgs []core.Message, account *core.Account, candidates []core.Rule) (string, error) {
	prompt := buildPrompt(msgs, account, candidates, c.textProcessor, c.maxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	name, err := decodeReply(responseText)
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
