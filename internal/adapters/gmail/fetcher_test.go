package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func TestSearchQuery(t *testing.T) {
	q := searchQuery("news@example.com")
	assert.Equal(t, "from:news@example.com -in:sent -in:draft", q)
}

func encodeBody(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseMessage(t *testing.T) {
	msg := &gmail.Message{
		Id: "m1",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "News <news@example.com>"},
				{Name: "Subject", Value: "Weekly digest"},
				{Name: "Date", Value: "Mon, 1 Jan 2024 00:00:00 +0000"},
			},
			Body: &gmail.MessagePartBody{Data: encodeBody("hello")},
		},
	}

	out := parseMessage("t1", msg)
	assert.Equal(t, "m1", out.ID)
	assert.Equal(t, "t1", out.ThreadID)
	assert.Equal(t, "News <news@example.com>", out.From)
	assert.Equal(t, "Weekly digest", out.Subject)
	assert.Equal(t, "hello", out.Body)
}

func TestParseMessageNilPayload(t *testing.T) {
	out := parseMessage("t1", &gmail.Message{Id: "m1"})
	assert.Equal(t, "m1", out.ID)
	assert.Empty(t, out.Body)
}

func TestCollectPlainTextNestedParts(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: encodeBody("<p>hi</p>")},
			},
			{
				MimeType: "multipart/related",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body:     &gmail.MessagePartBody{Data: encodeBody("plain body")},
					},
				},
			},
		},
	}

	assert.Equal(t, "plain body", collectPlainText(part))
}

func TestCollectPlainTextInvalidBase64(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: "!!not base64!!"},
	}
	assert.Empty(t, collectPlainText(part))
}
