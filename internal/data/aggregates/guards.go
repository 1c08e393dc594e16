package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/platform/dbctx"
)

// CASGuard provides optimistic concurrency helpers for aggregate writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, domainagg.NewError(domainagg.CodeInternal, "aggregate.cas", "missing db transaction context", nil)
}

func requireRow(op, table string, id uuid.UUID, expectedVersion int) error {
	if strings.TrimSpace(table) == "" || id == uuid.Nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "table and id are required", nil)
	}
	if expectedVersion < 0 {
		return domainagg.NewError(domainagg.CodeInternal, op, "expectedVersion must be >= 0", nil)
	}
	return nil
}

// UpdateByVersion updates a row only when id+version match.
func (g CASGuard) UpdateByVersion(dbc dbctx.Context, table string, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error) {
	if err := requireRow("aggregate.UpdateByVersion", table, id, expectedVersion); err != nil {
		return false, err
	}
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	res := db.Table(strings.TrimSpace(table)).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByVersion deletes a row only when id+version match.
func (g CASGuard) DeleteByVersion(dbc dbctx.Context, table string, id uuid.UUID, expectedVersion int) (bool, error) {
	if err := requireRow("aggregate.DeleteByVersion", table, id, expectedVersion); err != nil {
		return false, err
	}
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	res := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ? AND version = ?", strings.TrimSpace(table)), id, expectedVersion)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}
