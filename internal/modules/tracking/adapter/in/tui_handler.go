package in

import (
	"context"

	"stepcounter/internal/modules/tracking/dto"
	trackingin "stepcounter/internal/modules/tracking/port/in"
)

// TUIHandler is the command surface the terminal UI drives.
type TUIHandler struct {
	usecase trackingin.Usecase
}

func NewTUIHandler(usecase trackingin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) PermissionGranted(ctx context.Context) (dto.StateOutput, error) {
	return h.usecase.PermissionGranted(ctx)
}

func (h TUIHandler) Reset(ctx context.Context) (dto.StateOutput, error) {
	return h.usecase.Reset(ctx)
}

func (h TUIHandler) Watch(ctx context.Context) (<-chan dto.StateOutput, error) {
	return h.usecase.Watch(ctx)
}
