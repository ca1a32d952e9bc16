package in

import (
	"context"

	"stepcounter/internal/modules/tracking/dto"
	trackingin "stepcounter/internal/modules/tracking/port/in"
)

type CLIHandler struct {
	usecase trackingin.Usecase
}

func NewCLIHandler(usecase trackingin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Run(ctx context.Context) error {
	return h.usecase.Run(ctx)
}

func (h CLIHandler) Grant(ctx context.Context) (dto.StateOutput, error) {
	return h.usecase.PermissionGranted(ctx)
}

func (h CLIHandler) State(ctx context.Context) (dto.StateOutput, error) {
	return h.usecase.State(ctx)
}

func (h CLIHandler) Watch(ctx context.Context) (<-chan dto.StateOutput, error) {
	return h.usecase.Watch(ctx)
}
