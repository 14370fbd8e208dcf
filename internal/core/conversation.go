package core

import "github.com/mailsift/sender-patterns/internal/utils"

// onewayMessages flattens threads into a single message list, provided the
// sender is the only participant anywhere in them. The first thread containing
// a message from any other address disqualifies the whole sender and discards
// the messages collected so far: a sender who is ever part of a dialogue is
// not a broadcast sender, regardless of how many one-way threads they also
// have.
func onewayMessages(threads []Thread, sender string) []Message {
	var msgs []Message
	for _, t := range threads {
		for _, m := range t.Messages {
			if utils.NormalizeAddress(m.From) != sender {
				return nil
			}
		}
		msgs = append(msgs, t.Messages...)
	}
	return msgs
}
