package out

import (
	"context"

	historydto "stepcounter/internal/modules/history/dto"
	historyin "stepcounter/internal/modules/history/port/in"
	trackingout "stepcounter/internal/modules/tracking/port/out"
)

type HistorySaverAdapter struct {
	history historyin.Usecase
}

func NewHistorySaverAdapter(history historyin.Usecase) trackingout.CountSaver {
	return &HistorySaverAdapter{history: history}
}

func (a *HistorySaverAdapter) SaveCount(ctx context.Context, count int64) error {
	_, err := a.history.Save(ctx, historydto.SaveInput{Count: count})
	return err
}
