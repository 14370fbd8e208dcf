package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/core"
)

// MemoryStore is an in-memory implementation of the core.Store interface,
// used for tests and local development. It mirrors the uniqueness semantics
// of the gorm store with keyed maps under a single mutex.
type MemoryStore struct {
	mu          sync.Mutex
	logger      *zap.Logger
	accounts    map[string]core.Account
	rules       map[string]*core.Rule // accountID|name
	groups      map[uint]*core.RuleGroup
	groupByRule map[uint]uint              // ruleID -> groupID
	items       map[string]*core.GroupItem // groupID|type|value
	checks      map[string]core.SenderCheck
	nextRuleID  uint
	nextGroupID uint
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger:      logger,
		accounts:    make(map[string]core.Account),
		rules:       make(map[string]*core.Rule),
		groups:      make(map[uint]*core.RuleGroup),
		groupByRule: make(map[uint]uint),
		items:       make(map[string]*core.GroupItem),
		checks:      make(map[string]core.SenderCheck),
	}
}

func ruleKey(accountID, name string) string { return accountID + "|" + name }

func checkKey(accountID, sender string) string { return accountID + "|" + sender }

func itemKey(groupID uint, itemType core.GroupItemType, value string) string {
	return fmt.Sprintf("%d|%s|%s", groupID, itemType, value)
}

// AddAccount seeds an account
func (s *MemoryStore) AddAccount(account core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

// AddRule seeds a rule and returns its id
func (s *MemoryStore) AddRule(rule core.Rule) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRuleID++
	rule.ID = s.nextRuleID
	s.rules[ruleKey(rule.AccountID, rule.Name)] = &rule
	return rule.ID
}

// GetAccount returns the account or (nil, nil) when it does not exist
func (s *MemoryStore) GetAccount(ctx context.Context, accountID string) (*core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

// GetSenderCheck returns the ledger row or (nil, nil) when absent
func (s *MemoryStore) GetSenderCheck(ctx context.Context, accountID, senderEmail string) (*core.SenderCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	check, ok := s.checks[checkKey(accountID, senderEmail)]
	if !ok {
		return nil, nil
	}
	return &check, nil
}

// UpsertSenderCheck writes the ledger row, last writer wins
func (s *MemoryStore) UpsertSenderCheck(ctx context.Context, check *core.SenderCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[checkKey(check.AccountID, check.SenderEmail)] = *check
	return nil
}

// CandidateRules returns enabled rules with non-empty instructions
func (s *MemoryStore) CandidateRules(ctx context.Context, accountID string) ([]core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rules []core.Rule
	for _, rule := range s.rules {
		if rule.AccountID == accountID && rule.Enabled && rule.Instructions != "" {
			rules = append(rules, *rule)
		}
	}
	return rules, nil
}

// RecordPattern associates a learned sender-address criterion with the named rule
func (s *MemoryStore) RecordPattern(ctx context.Context, accountID, ruleName, senderEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[ruleKey(accountID, ruleName)]
	if !ok {
		s.logger.Info("Rule vanished before pattern could be recorded",
			zap.String("account_id", accountID),
			zap.String("rule", ruleName))
		return nil
	}

	groupID, ok := s.groupByRule[rule.ID]
	if !ok {
		s.nextGroupID++
		groupID = s.nextGroupID
		ruleID := rule.ID
		s.groups[groupID] = &core.RuleGroup{
			ID:        groupID,
			AccountID: accountID,
			Name:      rule.Name,
			RuleID:    &ruleID,
		}
		s.groupByRule[rule.ID] = groupID
		gid := groupID
		rule.GroupID = &gid
	}

	key := itemKey(groupID, core.GroupItemFrom, senderEmail)
	if _, exists := s.items[key]; !exists {
		s.items[key] = &core.GroupItem{
			GroupID: groupID,
			Type:    core.GroupItemFrom,
			Value:   senderEmail,
		}
	}
	return nil
}

// BulkUpsertGroupItems writes a batch of criteria, overwriting exclude flags
func (s *MemoryStore) BulkUpsertGroupItems(ctx context.Context, groupID uint, items []core.GroupItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if !item.Type.Valid() {
			return fmt.Errorf("invalid group item type %q", item.Type)
		}
		item.GroupID = groupID
		stored := item
		s.items[itemKey(groupID, item.Type, item.Value)] = &stored
	}
	return nil
}

// Ping reports storage health
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// GroupForRule returns the group materialized for a rule, or nil.
// Test/inspection helper.
func (s *MemoryStore) GroupForRule(accountID, ruleName string) *core.RuleGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleKey(accountID, ruleName)]
	if !ok {
		return nil
	}
	groupID, ok := s.groupByRule[rule.ID]
	if !ok {
		return nil
	}
	group := *s.groups[groupID]
	return &group
}

// ItemsForGroup returns the criteria stored under a group. Test/inspection helper.
func (s *MemoryStore) ItemsForGroup(groupID uint) []core.GroupItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []core.GroupItem
	for _, item := range s.items {
		if item.GroupID == groupID {
			items = append(items, *item)
		}
	}
	return items
}

// SenderCheckCount returns the number of ledger rows. Test/inspection helper.
func (s *MemoryStore) SenderCheckCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checks)
}

// GroupCount returns the number of rule groups. Test/inspection helper.
func (s *MemoryStore) GroupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}
