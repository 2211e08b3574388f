package app

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"relaychat/internal/domain"
	"relaychat/internal/viewmodel"
)

// Run starts the terminal UI and blocks until the user quits or parent is
// cancelled. The UI becomes the effect consumer of both view models.
func Run(parent context.Context, deps Deps, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(deps), opts...)

	var wg sync.WaitGroup
	pump := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	pump(func() {
		for s := range deps.Chat.WatchState(ctx) {
			p.Send(ChatStateMsg{State: s})
		}
	})
	pump(func() {
		for s := range deps.Settings.WatchState(ctx) {
			p.Send(SettingsStateMsg{State: s})
		}
	})
	collect := func(q *viewmodel.EffectQueue, name string) {
		pump(func() {
			err := q.Collect(ctx, func(e domain.Effect) { p.Send(EffectMsg{Effect: e}) })
			if errors.Is(err, viewmodel.ErrConsumerAttached) && deps.Logger != nil {
				deps.Logger.Warn("effects already consumed elsewhere", "screen", name)
			}
		})
	}
	collect(deps.Chat.Effects(), "chat")
	collect(deps.Settings.Effects(), "settings")

	_, err := p.Run()
	cancel()
	wg.Wait()
	if errors.Is(err, tea.ErrProgramKilled) && parent.Err() != nil {
		return nil
	}
	return err
}
