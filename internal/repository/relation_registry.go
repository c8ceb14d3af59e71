package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-ledger/internal/model"
)

// relationPrefix marks every per-channel task table. Nothing else in the
// database may use it.
const relationPrefix = "tasks_"

// RelationName maps a channel id to its table name. Negative ids (Telegram
// groups) are written with an "n" instead of "-" so the name stays a plain
// identifier. The mapping is reversible with ChannelFromRelation.
func RelationName(channelID int64) string {
	if channelID < 0 {
		return relationPrefix + "n" + strconv.FormatUint(uint64(-channelID), 10)
	}
	return relationPrefix + strconv.FormatInt(channelID, 10)
}

// ChannelFromRelation is the inverse of RelationName. Tables that were not
// produced by RelationName are rejected.
func ChannelFromRelation(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, relationPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	negative := false
	if rest[0] == 'n' {
		negative = true
		rest = rest[1:]
	}
	if rest == "" || (len(rest) > 1 && rest[0] == '0') {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	if negative {
		n, err := strconv.ParseUint(rest, 10, 64)
		if err != nil || n == 0 || n > 1<<63 {
			return 0, false
		}
		return -int64(n-1) - 1, true
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RelationRegistry owns the lifecycle of per-channel task tables: created on
// first write, dropped when the last row goes.
type RelationRegistry struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewRelationRegistry(db *gorm.DB, log *slog.Logger) *RelationRegistry {
	return &RelationRegistry{db: db, log: log}
}

func (r *RelationRegistry) exists(ctx context.Context, name string) bool {
	return r.db.WithContext(ctx).Migrator().HasTable(name)
}

// Ensure creates the channel relation unless it already exists. Losing a
// creation race to a concurrent caller counts as success.
func (r *RelationRegistry) Ensure(ctx context.Context, channelID int64) error {
	name := RelationName(channelID)
	if r.exists(ctx, name) {
		return nil
	}
	return r.create(ctx, name)
}

func (r *RelationRegistry) create(ctx context.Context, name string) error {
	db := r.db.WithContext(ctx)
	err := db.Table(name).Migrator().CreateTable(&model.Task{})
	if err == nil {
		r.log.Info("relation created", "relation", name)
		return nil
	}
	if isDuplicateRelation(err) || r.exists(ctx, name) {
		r.log.Debug("relation created concurrently", "relation", name)
		return nil
	}
	return fmt.Errorf("create relation %s: %w", name, classify(err))
}

// DropIfEmpty removes the channel relation when it holds no rows. It returns
// true when a table was dropped. A relation that is already gone is not an
// error.
func (r *RelationRegistry) DropIfEmpty(ctx context.Context, channelID int64) (bool, error) {
	name := RelationName(channelID)
	if !r.exists(ctx, name) {
		return false, nil
	}

	dropped := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == DriverPostgres {
			if err := tx.Exec("LOCK TABLE ? IN ACCESS EXCLUSIVE MODE", clause.Table{Name: name}).Error; err != nil {
				return err
			}
		}
		var count int64
		if err := tx.Table(name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := tx.Migrator().DropTable(name); err != nil {
			return err
		}
		dropped = true
		return nil
	})
	if err != nil {
		if isMissingRelation(err) {
			return false, nil
		}
		return false, fmt.Errorf("drop relation %s: %w", name, classify(err))
	}
	if dropped {
		r.log.Info("relation dropped", "relation", name)
	}
	return dropped, nil
}

// Channels lists every channel that currently owns a relation.
func (r *RelationRegistry) Channels(ctx context.Context) ([]int64, error) {
	tables, err := r.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", classify(err))
	}
	var out []int64
	for _, table := range tables {
		if id, ok := ChannelFromRelation(table); ok {
			out = append(out, id)
		}
	}
	return out, nil
}
