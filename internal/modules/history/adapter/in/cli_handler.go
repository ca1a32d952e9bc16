package in

import (
	"context"

	"stepcounter/internal/modules/history/dto"
	historyin "stepcounter/internal/modules/history/port/in"
)

type CLIHandler struct {
	usecase historyin.Usecase
}

func NewCLIHandler(usecase historyin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Latest(ctx context.Context) (dto.LatestOutput, error) {
	return h.usecase.Latest(ctx)
}

func (h CLIHandler) Recent(ctx context.Context, limit int) ([]dto.RecordOutput, error) {
	return h.usecase.Recent(ctx, dto.RecentInput{Limit: limit})
}

func (h CLIHandler) WatchLatest(ctx context.Context) (<-chan dto.LatestOutput, error) {
	return h.usecase.Watch(ctx)
}
