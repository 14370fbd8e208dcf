package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func thread(id string, froms ...string) Thread {
	t := Thread{ID: id}
	for i, from := range froms {
		t.Messages = append(t.Messages, Message{
			ID:       id + "-" + string(rune('a'+i)),
			ThreadID: id,
			From:     from,
		})
	}
	return t
}

func TestOnewayMessages(t *testing.T) {
	sender := "news@example.com"

	t.Run("all one-way threads flatten", func(t *testing.T) {
		threads := []Thread{
			thread("t1", "news@example.com", "news@example.com"),
			thread("t2", "News <news@example.com>"),
		}
		msgs := onewayMessages(threads, sender)
		assert.Len(t, msgs, 3)
	})

	t.Run("foreign sender disqualifies everything", func(t *testing.T) {
		threads := []Thread{
			thread("t1", "news@example.com"),
			thread("t2", "news@example.com", "me@example.com"),
			thread("t3", "news@example.com"),
		}
		assert.Nil(t, onewayMessages(threads, sender))
	})

	t.Run("no threads", func(t *testing.T) {
		assert.Nil(t, onewayMessages(nil, sender))
	})

	t.Run("display names normalize before comparison", func(t *testing.T) {
		threads := []Thread{thread("t1", "The Newsletter <NEWS@example.com>")}
		msgs := onewayMessages(threads, sender)
		assert.Len(t, msgs, 1)
	})
}
