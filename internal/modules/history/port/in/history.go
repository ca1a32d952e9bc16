package in

import (
	"context"

	"stepcounter/internal/modules/history/dto"
)

type Usecase interface {
	Save(ctx context.Context, input dto.SaveInput) (dto.RecordOutput, error)
	Latest(ctx context.Context) (dto.LatestOutput, error)
	Recent(ctx context.Context, input dto.RecentInput) ([]dto.RecordOutput, error)
	Watch(ctx context.Context) (<-chan dto.LatestOutput, error)
}
