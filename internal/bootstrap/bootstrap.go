package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	historyinadapter "stepcounter/internal/modules/history/adapter/in"
	historyoutadapter "stepcounter/internal/modules/history/adapter/out"
	historyservice "stepcounter/internal/modules/history/service"
	historyusecase "stepcounter/internal/modules/history/usecase"
	trackinginadapter "stepcounter/internal/modules/tracking/adapter/in"
	trackingoutadapter "stepcounter/internal/modules/tracking/adapter/out"
	trackingout "stepcounter/internal/modules/tracking/port/out"
	trackingservice "stepcounter/internal/modules/tracking/service"
	trackingusecase "stepcounter/internal/modules/tracking/usecase"
	"stepcounter/internal/platform/clock"
	"stepcounter/internal/platform/config"
	"stepcounter/internal/platform/id"
	"stepcounter/internal/platform/logging"
	uiapp "stepcounter/internal/ui/app"
)

type App struct {
	TrackingCLI trackinginadapter.CLIHandler
	TrackingTUI trackinginadapter.TUIHandler
	HistoryCLI  historyinadapter.CLIHandler

	store *historyoutadapter.SQLiteRecordStore
}

// New wires one tracking session against the store at cfg.DBPath. stdin
// feeds the stream source when no stream path is configured.
func New(cfg config.Config, stdin io.Reader, logger *slog.Logger) (*App, error) {
	logger = logging.OrDiscard(logger)
	clk := clock.SystemClock{}

	store, err := historyoutadapter.NewSQLiteRecordStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("new record store: %w", err)
	}
	historyUC := historyusecase.NewInteractor(historyservice.NewHistoryService(clk, store, logger.With("module", "history")))

	source, err := newStepSource(cfg.Source, clk, stdin, logger.With("module", "source"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	trackingLogger := logger.With("module", "tracking")
	trackingUC := trackingusecase.NewInteractor(
		trackingservice.NewEngine(trackingLogger),
		trackingservice.NewPeriodicSaver(clk, trackingoutadapter.NewHistorySaverAdapter(historyUC), trackingLogger),
		source,
		id.UUID{},
		cfg.SavePeriod,
		trackingLogger,
	)

	return &App{
		TrackingCLI: trackinginadapter.NewCLIHandler(trackingUC),
		TrackingTUI: trackinginadapter.NewTUIHandler(trackingUC),
		HistoryCLI:  historyinadapter.NewCLIHandler(historyUC),
		store:       store,
	}, nil
}

func newStepSource(cfg config.Source, clk clock.Clock, stdin io.Reader, logger *slog.Logger) (trackingout.StepSource, error) {
	switch cfg.Kind {
	case config.SourceSysfs:
		return trackingoutadapter.NewSysfsStepSource(cfg.Path, cfg.PollInterval, clk, logger), nil
	case config.SourceStream:
		if cfg.Path != "" {
			return trackingoutadapter.NewFileStepSource(cfg.Path, logger), nil
		}
		if stdin == nil {
			return nil, fmt.Errorf("stream source needs a path or stdin")
		}
		return trackingoutadapter.NewReaderStepSource("stdin", stdin, logger), nil
	default:
		return nil, fmt.Errorf("unknown step source %q", cfg.Kind)
	}
}

func (a *App) Close() error {
	return a.store.Close()
}

// RunTUI runs the tracking session for as long as the program is open.
func RunTUI(ctx context.Context, app *App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- app.TrackingCLI.Run(ctx) }()

	model := uiapp.NewModel(ctx, app.TrackingTUI, app.HistoryCLI)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	cancel()
	if sessionErr := <-runErr; err == nil {
		err = sessionErr
	}
	return err
}
