package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mailsift/sender-patterns/internal/core"
)

// ThreadFetcher implements core.ThreadFetcher using the Gmail API. A service
// handle is built per call from the caller's access token, since every
// invocation may act on behalf of a different account.
type ThreadFetcher struct {
	logger *zap.Logger
}

// NewThreadFetcher creates a new Gmail thread fetcher
func NewThreadFetcher(logger *zap.Logger) *ThreadFetcher {
	return &ThreadFetcher{logger: logger}
}

// searchQuery builds the Gmail search expression for a sender's inbound
// threads. Sent and draft folders are excluded so the user's own replies
// never count as sender mail.
func searchQuery(sender string) string {
	return fmt.Sprintf("from:%s -in:sent -in:draft", sender)
}

// FetchThreads retrieves up to max threads from the sender with their full
// message lists. Zero matches returns a nil slice, not an error.
func (f *ThreadFetcher) FetchThreads(ctx context.Context, accessToken, sender string, max int64) ([]core.Thread, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	listed, err := svc.Users.Threads.List("me").
		Q(searchQuery(sender)).
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	var threads []core.Thread
	for _, handle := range listed.Threads {
		full, err := svc.Users.Threads.Get("me", handle.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get thread %s: %w", handle.Id, err)
		}
		thread := core.Thread{ID: handle.Id}
		for _, msg := range full.Messages {
			thread.Messages = append(thread.Messages, parseMessage(handle.Id, msg))
		}
		threads = append(threads, thread)
	}

	f.logger.Debug("Fetched sender threads",
		zap.String("sender", sender),
		zap.Int("threads", len(threads)))
	return threads, nil
}

// parseMessage reduces a Gmail API message to the fields the engine uses.
func parseMessage(threadID string, msg *gmail.Message) core.Message {
	out := core.Message{
		ID:       msg.Id,
		ThreadID: threadID,
	}
	if msg.Payload == nil {
		return out
	}
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			out.From = header.Value
		case "Subject":
			out.Subject = header.Value
		}
	}
	out.Body = collectPlainText(msg.Payload)
	return out
}

// collectPlainText walks the MIME part tree and returns the first text/plain
// body found, decoded from the API's URL-safe base64.
func collectPlainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(data)
	}
	for _, sub := range part.Parts {
		if body := collectPlainText(sub); body != "" {
			return body
		}
	}
	return ""
}
