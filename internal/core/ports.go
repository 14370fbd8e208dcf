package core

import (
	"context"
	"errors"
)

// ErrNoCredentials is returned by a CredentialProvider when an account has no
// usable credentials (missing or revoked). The caller must abort without
// writing a sender check so a later trigger can retry.
var ErrNoCredentials = errors.New("no valid credentials for account")

// PatternOracle decides which of the candidate rules, if any, a set of
// one-way messages from a single sender matches. It returns the matched rule
// name or "" for no match. Transport failures are returned as errors; a
// well-formed reply naming no (or an unknown) rule is not an error.
type PatternOracle interface {
	DetectPattern(ctx context.Context, msgs []Message, account *Account, candidates []Rule) (string, error)
}

// ThreadFetcher retrieves threads from the mail provider for a single sender,
// excluding sent and draft folders, capped at max threads. Zero matches is a
// nil slice, not an error.
type ThreadFetcher interface {
	FetchThreads(ctx context.Context, accessToken, sender string, max int64) ([]Thread, error)
}

// CredentialProvider supplies a fresh bearer credential for an account,
// refreshing out-of-band state as needed.
type CredentialProvider interface {
	// AccessToken returns a valid access token or ErrNoCredentials.
	AccessToken(ctx context.Context, account *Account) (string, error)
}

// Store is the persistence collaborator. Uniqueness constraints are enforced
// by the storage layer itself, never re-validated by callers; all writes are
// idempotent upserts safe under concurrent duplicate writers.
type Store interface {
	// GetAccount returns the account or (nil, nil) when it does not exist.
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// GetSenderCheck returns the ledger row for (account, sender) or
	// (nil, nil) when the sender has never reached a terminal decision.
	GetSenderCheck(ctx context.Context, accountID, senderEmail string) (*SenderCheck, error)

	// UpsertSenderCheck writes the ledger row, last writer wins.
	UpsertSenderCheck(ctx context.Context, check *SenderCheck) error

	// CandidateRules returns the account's enabled rules that carry
	// non-empty instructions.
	CandidateRules(ctx context.Context, accountID string) ([]Rule, error)

	// RecordPattern associates a learned sender-address criterion with the
	// named rule, materializing the rule's group on first use. A missing
	// rule is not an error. Re-asserting an existing criterion is a no-op
	// that preserves its exclude flag.
	RecordPattern(ctx context.Context, accountID, ruleName, senderEmail string) error

	// BulkUpsertGroupItems writes a batch of criteria into a group. Unlike
	// RecordPattern, an existing criterion's exclude flag is overwritten
	// from the new assertion.
	BulkUpsertGroupItems(ctx context.Context, groupID uint, items []GroupItem) error

	// Ping reports storage health.
	Ping(ctx context.Context) error
}
