package store

import (
	"time"

	"github.com/mailsift/sender-patterns/internal/core"
)

// Row types carry the schema; conversion to core types happens at the
// adapter boundary so the domain stays free of gorm tags.

type accountRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"size:255;not null"`
	RefreshToken string `gorm:"size:512"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (accountRow) TableName() string { return "accounts" }

func (r accountRow) toCore() *core.Account {
	return &core.Account{
		ID:           r.ID,
		Email:        r.Email,
		RefreshToken: r.RefreshToken,
	}
}

type ruleRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	AccountID    string `gorm:"size:64;not null;uniqueIndex:idx_rules_account_name"`
	Name         string `gorm:"size:255;not null;uniqueIndex:idx_rules_account_name"`
	Instructions string `gorm:"type:text"`
	Enabled      bool   `gorm:"not null;default:true"`
	GroupID      *uint  `gorm:"uniqueIndex"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ruleRow) TableName() string { return "rules" }

func (r ruleRow) toCore() core.Rule {
	return core.Rule{
		ID:           r.ID,
		AccountID:    r.AccountID,
		Name:         r.Name,
		Instructions: r.Instructions,
		Enabled:      r.Enabled,
		GroupID:      r.GroupID,
	}
}

type ruleGroupRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"size:64;not null;index"`
	Name      string `gorm:"size:255;not null"`
	// At most one group per rule; the unique key is what makes lazy
	// materialization race-safe across workers.
	RuleID    *uint `gorm:"uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ruleGroupRow) TableName() string { return "rule_groups" }

type groupItemRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	GroupID   uint   `gorm:"not null;uniqueIndex:idx_group_items_key"`
	ItemType  string `gorm:"size:32;not null;uniqueIndex:idx_group_items_key"`
	Value     string `gorm:"size:255;not null;uniqueIndex:idx_group_items_key"`
	Exclude   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (groupItemRow) TableName() string { return "group_items" }

type senderCheckRow struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	AccountID      string `gorm:"size:64;not null;uniqueIndex:idx_sender_checks_key"`
	SenderEmail    string `gorm:"size:255;not null;uniqueIndex:idx_sender_checks_key"`
	Analyzed       bool   `gorm:"not null;default:false"`
	LastAnalyzedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (senderCheckRow) TableName() string { return "sender_checks" }
