package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mailsift/sender-patterns/internal/core"
)

// GormStore is a gorm implementation of the core.Store interface. All writes
// go through unique-key upserts so concurrent duplicate writers (including
// other process instances) converge on a single row.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenMySQL opens a MySQL-backed gorm handle
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a SQLite-backed gorm handle
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return db, nil
}

// NewGormStore creates a new store and migrates the schema
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&accountRow{}, &ruleRow{}, &ruleGroupRow{}, &groupItemRow{}, &senderCheckRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db, logger: logger}, nil
}

// GetAccount returns the account or (nil, nil) when it does not exist
func (s *GormStore) GetAccount(ctx context.Context, accountID string) (*core.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return row.toCore(), nil
}

// GetSenderCheck returns the ledger row or (nil, nil) when absent
func (s *GormStore) GetSenderCheck(ctx context.Context, accountID, senderEmail string) (*core.SenderCheck, error) {
	var row senderCheckRow
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND sender_email = ?", accountID, senderEmail).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sender check: %w", err)
	}
	return &core.SenderCheck{
		AccountID:      row.AccountID,
		SenderEmail:    row.SenderEmail,
		Analyzed:       row.Analyzed,
		LastAnalyzedAt: row.LastAnalyzedAt,
	}, nil
}

// UpsertSenderCheck writes the ledger row, last writer wins
func (s *GormStore) UpsertSenderCheck(ctx context.Context, check *core.SenderCheck) error {
	row := senderCheckRow{
		AccountID:      check.AccountID,
		SenderEmail:    check.SenderEmail,
		Analyzed:       check.Analyzed,
		LastAnalyzedAt: check.LastAnalyzedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "sender_email"}},
		DoUpdates: clause.AssignmentColumns([]string{"analyzed", "last_analyzed_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert sender check: %w", err)
	}
	return nil
}

// CandidateRules returns enabled rules with non-empty instructions
func (s *GormStore) CandidateRules(ctx context.Context, accountID string) ([]core.Rule, error) {
	var rows []ruleRow
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND enabled = ? AND instructions <> ''", accountID, true).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate rules: %w", err)
	}
	rules := make([]core.Rule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, r.toCore())
	}
	return rules, nil
}

// RecordPattern associates a learned sender-address criterion with the named
// rule, creating the rule's group on first use. A rule deleted between the
// oracle's verdict and this call is logged and swallowed.
func (s *GormStore) RecordPattern(ctx context.Context, accountID, ruleName, senderEmail string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rule ruleRow
		err := tx.Where("account_id = ? AND name = ?", accountID, ruleName).First(&rule).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("Rule vanished before pattern could be recorded",
				zap.String("account_id", accountID),
				zap.String("rule", ruleName))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up rule: %w", err)
		}

		groupID := rule.GroupID
		if groupID == nil {
			group := ruleGroupRow{
				AccountID: accountID,
				Name:      rule.Name,
				RuleID:    &rule.ID,
			}
			// Create-if-absent: a concurrent writer that got here first wins
			// and we adopt its group.
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "rule_id"}},
				DoNothing: true,
			}).Create(&group).Error
			if err != nil {
				return fmt.Errorf("failed to create rule group: %w", err)
			}
			if group.ID == 0 {
				if err := tx.Where("rule_id = ?", rule.ID).First(&group).Error; err != nil {
					return fmt.Errorf("failed to load existing rule group: %w", err)
				}
			}
			err = tx.Model(&ruleRow{}).
				Where("id = ? AND group_id IS NULL", rule.ID).
				Update("group_id", group.ID).Error
			if err != nil {
				return fmt.Errorf("failed to link rule to group: %w", err)
			}
			groupID = &group.ID
		}

		// No-op when the criterion already exists, preserving whatever
		// exclude flag it carries.
		item := groupItemRow{
			GroupID:  *groupID,
			ItemType: string(core.GroupItemFrom),
			Value:    senderEmail,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "item_type"}, {Name: "value"}},
			DoNothing: true,
		}).Create(&item).Error
		if err != nil {
			return fmt.Errorf("failed to upsert group item: %w", err)
		}
		return nil
	})
}

// BulkUpsertGroupItems writes a batch of criteria, overwriting the exclude
// flag of any existing row. This overwrite policy is intentionally different
// from RecordPattern's.
func (s *GormStore) BulkUpsertGroupItems(ctx context.Context, groupID uint, items []core.GroupItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]groupItemRow, 0, len(items))
	for _, item := range items {
		if !item.Type.Valid() {
			return fmt.Errorf("invalid group item type %q", item.Type)
		}
		rows = append(rows, groupItemRow{
			GroupID:  groupID,
			ItemType: string(item.Type),
			Value:    item.Value,
			Exclude:  item.Exclude,
		})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "item_type"}, {Name: "value"}},
		DoUpdates: clause.AssignmentColumns([]string{"exclude", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to bulk upsert group items: %w", err)
	}
	return nil
}

// Ping reports storage health
func (s *GormStore) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to unwrap database handle: %w", err)
	}
	return db.PingContext(ctx)
}
