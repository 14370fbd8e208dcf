package core

import "time"

// Message is a single mail message as retrieved from the provider.
type Message struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Body     string
}

// Thread is an ordered bag of messages sharing a provider thread id. Threads
// are read-only here; the engine never mutates provider data.
type Thread struct {
	ID       string
	Messages []Message
}

// Account identifies a mailbox owner and carries the OAuth refresh token used
// to mint access credentials for the mail provider.
type Account struct {
	ID           string
	Email        string
	RefreshToken string
}

// Rule is a named classification label owned by an account. Only enabled
// rules with non-empty instructions are ever offered to the oracle.
type Rule struct {
	ID           uint
	AccountID    string
	Name         string
	Instructions string
	Enabled      bool
	GroupID      *uint
}

// RuleGroup is a named bucket of match criteria feeding exactly one rule.
// It is materialized lazily when a rule receives its first learned criterion.
type RuleGroup struct {
	ID        uint
	AccountID string
	Name      string
	RuleID    *uint
}

// GroupItemType enumerates the criterion kinds a rule group can hold. The set
// is closed: persistence rejects anything outside it.
type GroupItemType string

const (
	// GroupItemFrom matches on the sender address. This is the only kind the
	// learning engine writes.
	GroupItemFrom GroupItemType = "from"
	// GroupItemSubject matches on the message subject.
	GroupItemSubject GroupItemType = "subject"
	// GroupItemDomain matches on the sender domain.
	GroupItemDomain GroupItemType = "domain"
)

// Valid reports whether t is a member of the closed kind set.
func (t GroupItemType) Valid() bool {
	switch t {
	case GroupItemFrom, GroupItemSubject, GroupItemDomain:
		return true
	}
	return false
}

// GroupItem is one concrete match criterion inside a rule group.
// (group, type, value) is unique.
type GroupItem struct {
	GroupID uint
	Type    GroupItemType
	Value   string
	Exclude bool
}

// SenderCheck records whether pattern analysis has completed for a
// (account, sender) pair. The sender email is always the normalized bare
// address. Rows are never deleted, only upserted.
type SenderCheck struct {
	AccountID      string
	SenderEmail    string
	Analyzed       bool
	LastAnalyzedAt time.Time
}
