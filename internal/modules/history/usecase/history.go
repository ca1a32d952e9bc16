package usecase

import (
	"context"

	"stepcounter/internal/modules/history/domain"
	"stepcounter/internal/modules/history/dto"
	historyin "stepcounter/internal/modules/history/port/in"
	"stepcounter/internal/modules/history/service"
)

type Interactor struct {
	svc *service.HistoryService
}

func NewInteractor(svc *service.HistoryService) historyin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Save(ctx context.Context, input dto.SaveInput) (dto.RecordOutput, error) {
	record, err := i.svc.Save(ctx, input.Count)
	if err != nil {
		return dto.RecordOutput{}, err
	}
	return toRecordOutput(record), nil
}

func (i *Interactor) Latest(ctx context.Context) (dto.LatestOutput, error) {
	return toLatestOutput(i.svc.Latest(ctx)), nil
}

func (i *Interactor) Recent(ctx context.Context, input dto.RecentInput) ([]dto.RecordOutput, error) {
	records, err := i.svc.Recent(ctx, input.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RecordOutput, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordOutput(record))
	}
	return out, nil
}

func (i *Interactor) Watch(ctx context.Context) (<-chan dto.LatestOutput, error) {
	src := i.svc.Watch(ctx)
	out := make(chan dto.LatestOutput, 1)
	go func() {
		defer close(out)
		for latest := range src {
			select {
			case out <- toLatestOutput(latest):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func toRecordOutput(record domain.Record) dto.RecordOutput {
	return dto.RecordOutput{
		ID:          record.ID,
		TimestampMs: record.Timestamp,
		SavedAt:     record.Time(),
		Count:       record.Count,
	}
}

func toLatestOutput(latest domain.Latest) dto.LatestOutput {
	if !latest.Found {
		return dto.LatestOutput{}
	}
	return dto.LatestOutput{Found: true, Record: toRecordOutput(latest.Record)}
}
