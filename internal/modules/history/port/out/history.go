package out

import (
	"context"

	"stepcounter/internal/modules/history/domain"
)

type RecordStore interface {
	Insert(ctx context.Context, record domain.Record) (domain.Record, error)
	Latest(ctx context.Context) (domain.Record, error)
	Recent(ctx context.Context, limit int) ([]domain.Record, error)
}
