// Package importer wires the selection, scheduling, and UI layers together:
// it owns the scheduler for one batch and translates between TUI events and
// scheduler commands.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/arciva/importer/api"
	appevents "github.com/arciva/importer/internal/events"
	"github.com/arciva/importer/internal/events/importing"
	"github.com/arciva/importer/pkg/concurrency"
	"github.com/arciva/importer/pkg/pending"
	"github.com/arciva/importer/pkg/upload"
)

// Config carries the settings of one importer run.
type Config struct {
	ServerURL        string
	SessionToken     string
	ProjectID        string
	Concurrency      int
	Sequential       bool
	IgnoreDuplicates bool
}

// policy maps the CLI flags onto a scheduling policy.
func (c Config) policy() upload.Policy {
	if c.Sequential {
		return upload.SequentialPolicy{}
	}
	return upload.BoundedPolicy{MaxInFlight: c.Concurrency}
}

// App is the main application logic controller for an import run.
type App struct {
	cfg       Config
	guard     *concurrency.ConcurrencyGuard
	scheduler *upload.Scheduler

	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
}

// NewApp creates an importer talking to the backend named in cfg.
func NewApp(cfg Config) *App {
	return NewAppWithClient(cfg, api.NewClient(cfg.ServerURL, cfg.SessionToken))
}

// NewAppWithClient creates an importer over an explicit protocol client;
// tests use it to substitute a double.
func NewAppWithClient(cfg Config, client upload.TransferClient) *App {
	a := &App{
		cfg:        cfg,
		guard:      concurrency.NewConcurrencyGuard(),
		uiMessages: make(chan tea.Msg, 10),
		appEvents:  make(chan appevents.AppEvent),
	}

	a.scheduler = upload.NewScheduler(client, upload.Config{
		ProjectID:        cfg.ProjectID,
		Policy:           cfg.policy(),
		IgnoreDuplicates: cfg.IgnoreDuplicates,
	})
	a.scheduler.AddListener(upload.ListenerFuncs{
		TaskChanged: func(old, current upload.Task) {
			a.uiMessages <- importing.TaskUpdatedMsg{Old: old, Current: current}
		},
		SummaryChanged: func(s upload.Summary) {
			a.uiMessages <- importing.SummaryMsg{Summary: s}
		},
	})

	return a
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Tasks returns snapshots of the batch's tasks.
func (a *App) Tasks() []upload.Task { return a.scheduler.Tasks() }

// Summary returns the batch's aggregate progress.
func (a *App) Summary() upload.Summary { return a.scheduler.Summary() }

// Run starts the application's main event loop and drives the batch built
// from items until the context ends.
func (a *App) Run(ctx context.Context, items []pending.Item) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runImport(ctx, items)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-a.appEvents:
				a.handleEvent(event)
			}
		}
	})

	return g.Wait()
}

// runImport submits the batch and reports settlement. Configuration errors
// surface through the task list rather than aborting the event loop, so the
// user sees them in the same place as transfer failures.
func (a *App) runImport(ctx context.Context, items []pending.Item) error {
	return a.guard.ExecuteWithContext(ctx, func(taskCtx context.Context) error {
		warnings, err := a.scheduler.Submit(taskCtx, items)
		if err != nil && !errors.Is(err, upload.ErrMissingProject) {
			a.sendAndLogError("failed to submit batch", err)
			return err
		}

		a.uiMessages <- importing.BatchStartedMsg{Tasks: a.scheduler.Tasks(), Warnings: warnings}

		if werr := a.scheduler.Wait(taskCtx); werr != nil {
			// Context ended before the batch settled; the TUI is going away.
			return nil
		}
		a.uiMessages <- importing.BatchSettledMsg{Summary: a.scheduler.Summary()}
		return nil
	})
}

func (a *App) handleEvent(event appevents.AppEvent) {
	var err error
	switch e := event.(type) {
	case importing.PauseTaskEvent:
		err = a.scheduler.Pause(e.TaskID)
	case importing.ResumeTaskEvent:
		err = a.scheduler.Resume(e.TaskID)
	case importing.CancelTaskEvent:
		err = a.scheduler.Cancel(e.TaskID)
	case importing.RetryTaskEvent:
		err = a.scheduler.Retry(e.TaskID)
	case importing.PauseAllEvent:
		a.scheduler.PauseAll()
	case importing.ResumeAllEvent:
		a.scheduler.ResumeAll()
	case importing.CancelAllEvent:
		a.scheduler.CancelAll()
	default:
		slog.Warn("unhandled app event", "event", fmt.Sprintf("%T", event))
	}
	if err != nil {
		a.sendAndLogError("command rejected", err)
	}
}

// sendAndLogError both logs an error and sends it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.uiMessages <- appevents.AppErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)}
}
