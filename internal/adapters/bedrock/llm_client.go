package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/core"
	"github.com/mailsift/sender-patterns/internal/utils"
)

// BedrockClient is an implementation of the PatternOracle interface using Amazon Bedrock
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
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

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// DetectPattern asks the model which candidate rule the sender's messages
// match. Transport errors propagate; an unparseable reply degrades to no
// match.
func (c *BedrockClient) DetectPattern(ctx context.Context, msgs []core.Message, account *core.Account, candidates []core.Rule) (string, error) {
	prompt := buildPrompt(msgs, account, candidates, c.textProcessor, c.maxBodySize)

	var payload []byte
	var err error

	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else if c.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := c.extractResponseText(resp.Body)
	if err != nil {
		return "", err
	}

	name, err := decodeReply(responseText)
	if err != nil {
		c.logger.Warn("Discarding unparseable oracle reply", zap.Error(err))
		return "", nil
	}
	return resolveRule(name, candidates, c.logger), nil
}

// extractResponseText pulls the generated text out of the model-specific
// response envelope.
func (c *BedrockClient) extractResponseText(body []byte) (string, error) {
	if c.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if c.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	}
	return string(body), nil
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

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}
