package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the request context together with the active transaction,
// when there is one.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
