package in

import (
	"context"

	"stepcounter/internal/modules/tracking/dto"
)

type Usecase interface {
	Run(ctx context.Context) error
	PermissionGranted(ctx context.Context) (dto.StateOutput, error)
	Reset(ctx context.Context) (dto.StateOutput, error)
	State(ctx context.Context) (dto.StateOutput, error)
	Watch(ctx context.Context) (<-chan dto.StateOutput, error)
}
