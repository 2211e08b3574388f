package viewmodel

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"relaychat/internal/adapter/store"
	"relaychat/internal/domain"
	"relaychat/internal/infra/watch"
	"relaychat/internal/uxerror"
)

// User-facing toast texts.
const (
	ToastEmptyMessage = "Message cannot be empty"
	ToastPleaseWait   = "Please wait for the current reply"
	ToastNothingRetry = "Nothing to retry"
	ToastCannotSend   = "Sending is unavailable, clear the conversation to start over"
)

// Snackbar action labels.
const (
	ActionRetry    = "Retry"
	ActionSettings = "Settings"
)

// MessageSender sends a new user message. The returned exchange carries the
// stored prompt even when the ask fails.
type MessageSender interface {
	Execute(ctx context.Context, text string) (domain.Exchange, error)
}

// MessageRetrier resends a stored user message.
type MessageRetrier interface {
	Execute(ctx context.Context, prompt domain.Message) (domain.Message, error)
}

// MessageObserver streams conversation snapshots.
type MessageObserver interface {
	Execute(ctx context.Context) (<-chan []domain.Message, error)
}

// ConversationClearer empties the conversation.
type ConversationClearer interface {
	Execute(ctx context.Context) error
}

// ChatUseCases groups the operations the chat view model drives.
type ChatUseCases struct {
	Send    MessageSender
	Retry   MessageRetrier
	Observe MessageObserver
	Clear   ConversationClearer
}

// generation scopes send and retry work. A clear starts a new generation and
// cancels the old one, so late results can be recognised and dropped.
type generation struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ChatViewModel orchestrates the chat screen.
type ChatViewModel struct {
	uc      ChatUseCases
	drafts  domain.DraftStore
	state   *watch.Value[domain.ConversationState]
	effects *EffectQueue
	logger  *slog.Logger
	own     *owner

	// Owned by the owner goroutine.
	gen      *generation
	nextGen  uint64
	messages []domain.Message // last snapshot plus pinned
	// pinned holds send results not yet seen in a snapshot.
	pinned []domain.Message

	observing bool
	obsID     uint64 // subscription whose snapshots are applied
	nextObsID uint64
	stopObs   context.CancelFunc
	// resume is set when observation must restart after pending clears.
	resume bool

	pendingClears int
	clearing      chan struct{} // closed when the latest clear finished
}

// NewChatViewModel creates the chat view model in the Initial state.
// drafts is owned by the caller and outlives the view model.
func NewChatViewModel(uc ChatUseCases, drafts domain.DraftStore, effectBuffer int, logger *slog.Logger) *ChatViewModel {
	vm := &ChatViewModel{
		uc:      uc,
		drafts:  drafts,
		state:   watch.New[domain.ConversationState](domain.Initial{}),
		effects: NewEffectQueue(effectBuffer, logger),
		logger:  logger.With("component", "chat_viewmodel"),
		own:     newOwner(context.Background()),
	}
	done := make(chan struct{})
	close(done)
	vm.clearing = done
	vm.gen = vm.newGeneration()
	return vm
}

// State returns the current conversation state.
func (vm *ChatViewModel) State() domain.ConversationState {
	return vm.state.Get()
}

// WatchState streams the current state and every later change until ctx is
// done. Slow readers only see the latest state.
func (vm *ChatViewModel) WatchState(ctx context.Context) <-chan domain.ConversationState {
	return vm.state.Subscribe(ctx)
}

// Effects returns the one-time effect queue.
func (vm *ChatViewModel) Effects() *EffectQueue {
	return vm.effects
}

// Draft returns the unsent input text.
func (vm *ChatViewModel) Draft() string {
	return vm.drafts.Get(store.KeyChatDraft)
}

// UpdateDraft records the unsent input text.
func (vm *ChatViewModel) UpdateDraft(text string) {
	vm.drafts.Set(store.KeyChatDraft, text)
}

// Dispatch submits event for processing. Events are handled one at a time in
// submission order. Dispatch after Close is ignored.
func (vm *ChatViewModel) Dispatch(event domain.ChatEvent) {
	vm.own.post(func() { vm.handle(event) })
}

// Close cancels in-flight work, waits for every goroutine and releases the
// effect consumer. The draft slot is left untouched.
func (vm *ChatViewModel) Close() {
	vm.own.close()
	vm.effects.Close()
}

func (vm *ChatViewModel) handle(event domain.ChatEvent) {
	switch e := event.(type) {
	case domain.ScreenLoaded:
		vm.load()
	case domain.SendMessage:
		vm.send(e.Text)
	case domain.ClearConversation:
		vm.clear()
	case domain.DismissError:
		vm.dismissError()
	case domain.RetryMessage:
		vm.retry()
	case domain.NavigateToSettings:
		vm.effects.Emit(domain.Navigate{Destination: domain.DestinationSettings})
	default:
		vm.logger.Warn("unknown chat event", "type", typeName(event))
	}
}

func (vm *ChatViewModel) setState(s domain.ConversationState) {
	prev := vm.state.Get()
	vm.state.Set(s)
	if domain.StateName(prev) != domain.StateName(s) {
		vm.logger.Debug("state transition", "from", domain.StateName(prev), "to", domain.StateName(s))
	}
}

func (vm *ChatViewModel) toast(text string) {
	vm.effects.Emit(domain.ShowToast{Text: text})
}

// --- loading ---

func (vm *ChatViewModel) load() {
	switch cur := vm.state.Get().(type) {
	case domain.Initial:
	case domain.Failed:
		if !cur.Recoverable {
			return
		}
	default:
		return
	}

	if vm.observing {
		// Stream is live; its latest snapshot is already known.
		vm.setState(domain.Success{Messages: vm.messages})
		return
	}
	vm.setState(domain.Loading{})
	vm.startObserving()
}

func (vm *ChatViewModel) startObserving() {
	if vm.observing {
		return
	}
	if vm.pendingClears > 0 {
		// A subscription opened now could replay the conversation being cleared.
		vm.resume = true
		return
	}
	ctx, cancel := context.WithCancel(vm.own.ctx)
	ch, err := vm.uc.Observe.Execute(ctx)
	if err != nil {
		cancel()
		vm.observeFailed(err)
		return
	}
	vm.nextObsID++
	id := vm.nextObsID
	vm.observing, vm.obsID, vm.stopObs = true, id, cancel
	vm.own.spawn(func() {
		for snap := range ch {
			if !vm.own.post(func() { vm.applySnapshot(id, snap) }) {
				return
			}
		}
		vm.own.post(func() {
			if vm.obsID == id {
				vm.observing = false
			}
		})
	})
}

// stopObserving ends the current subscription. Snapshots it already read are
// dropped when they reach the owner.
func (vm *ChatViewModel) stopObserving() {
	if vm.stopObs != nil {
		vm.stopObs()
		vm.stopObs = nil
	}
	vm.obsID = 0
	vm.observing = false
}

func (vm *ChatViewModel) observeFailed(err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindCanceled {
		return
	}
	fe := uxerror.Humanize(err)
	vm.logger.Warn("observe messages failed", "kind", string(kind), "error", err)

	switch cur := vm.state.Get().(type) {
	case domain.Success:
		cur.Error = fe.Banner()
		vm.setState(cur)
	default:
		vm.setState(domain.Failed{Message: fe.Banner(), Recoverable: kind.Recoverable()})
	}
}

func (vm *ChatViewModel) applySnapshot(obsID uint64, msgs []domain.Message) {
	if obsID != vm.obsID {
		return
	}
	if len(vm.pinned) > 0 {
		var rest []domain.Message
		for _, m := range vm.pinned {
			if !containsID(msgs, m.ID) {
				rest = append(rest, m)
			}
		}
		vm.pinned = rest
		if len(rest) > 0 {
			msgs = append(slices.Clip(msgs), rest...)
		}
	}
	vm.messages = msgs
	switch cur := vm.state.Get().(type) {
	case domain.Initial, domain.Loading:
		vm.setState(domain.Success{Messages: msgs})
	case domain.Success:
		cur.Messages = msgs
		vm.setState(cur)
	}
}

// settle pins the messages of a finished exchange so they are shown in the
// same transition that ends processing, whatever the snapshot stream lags.
func (vm *ChatViewModel) settle(ex domain.Exchange) {
	for _, m := range []domain.Message{ex.Prompt, ex.Reply} {
		if m.ID == "" || containsID(vm.messages, m.ID) {
			continue
		}
		vm.pinned = append(vm.pinned, m)
		vm.messages = append(slices.Clip(vm.messages), m)
	}
}

func containsID(msgs []domain.Message, id string) bool {
	return slices.ContainsFunc(msgs, func(m domain.Message) bool { return m.ID == id })
}

// --- sending ---

func (vm *ChatViewModel) send(text string) {
	if domain.IsBlank(text) {
		vm.toast(ToastEmptyMessage)
		return
	}
	var cur domain.Success
	switch st := vm.state.Get().(type) {
	case domain.Success:
		if st.IsProcessing {
			vm.toast(ToastPleaseWait)
			return
		}
		cur = st
	case domain.Failed:
		if !st.Recoverable {
			vm.toast(ToastCannotSend)
			return
		}
		cur = domain.Success{Messages: vm.messages}
	default:
		cur = domain.Success{Messages: vm.messages}
	}
	cur.IsProcessing = true
	cur.Error = ""
	vm.setState(cur)
	vm.startObserving()

	vm.runSend(func(ctx context.Context) (domain.Exchange, error) {
		return vm.uc.Send.Execute(ctx, text)
	}, false)
}

func (vm *ChatViewModel) retry() {
	switch cur := vm.state.Get().(type) {
	case domain.Success:
		if cur.IsProcessing {
			vm.toast(ToastPleaseWait)
			return
		}
		target, ok := domain.FindRetryTarget(cur.Messages)
		if !ok {
			vm.toast(ToastNothingRetry)
			return
		}
		cur.IsProcessing = true
		cur.Error = ""
		vm.setState(cur)
		vm.runSend(func(ctx context.Context) (domain.Exchange, error) {
			reply, err := vm.uc.Retry.Execute(ctx, target)
			return domain.Exchange{Prompt: target, Reply: reply}, err
		}, true)
	case domain.Failed:
		if cur.Recoverable {
			vm.load()
			return
		}
		vm.toast(ToastNothingRetry)
	default:
		vm.toast(ToastNothingRetry)
	}
}

// runSend executes call on a worker in the current generation and posts the
// outcome back to the owner.
func (vm *ChatViewModel) runSend(call func(ctx context.Context) (domain.Exchange, error), isRetry bool) {
	gen := vm.gen
	clearing := vm.clearing
	gen.wg.Add(1)
	vm.own.spawn(func() {
		defer gen.wg.Done()
		select {
		case <-clearing:
		case <-gen.ctx.Done():
			return
		}
		ex, err := call(gen.ctx)
		vm.own.post(func() { vm.sendFinished(gen.id, isRetry, ex, err) })
	})
}

func (vm *ChatViewModel) sendFinished(genID uint64, isRetry bool, ex domain.Exchange, err error) {
	if genID != vm.gen.id {
		vm.logger.Debug("discarding result from cleared conversation", "retry", isRetry)
		return
	}
	cur, ok := vm.state.Get().(domain.Success)
	if !ok {
		return
	}
	vm.settle(ex)
	cur.Messages = vm.messages
	cur.IsProcessing = false

	if err == nil {
		if !isRetry {
			vm.drafts.Delete(store.KeyChatDraft)
		}
		vm.setState(cur)
		return
	}

	kind := domain.KindOf(err)
	if kind == domain.KindCanceled {
		vm.setState(cur)
		return
	}
	fe := uxerror.Humanize(err)
	vm.logger.Warn("send failed", "retry", isRetry, "kind", string(kind), "error", err)

	switch kind {
	case domain.KindValidation:
		vm.setState(cur)
		vm.toast(fe.Message)
	case domain.KindAuthorization:
		vm.setState(domain.Failed{Message: fe.Banner(), Recoverable: false})
	case domain.KindAuthentication, domain.KindConfiguration:
		cur.Error = fe.Banner()
		vm.setState(cur)
		vm.effects.Emit(domain.ShowSnackbar{Text: fe.Title, ActionLabel: ActionSettings, Action: domain.NavigateToSettings{}})
	case domain.KindTransient:
		cur.Error = fe.Banner()
		vm.setState(cur)
		vm.effects.Emit(domain.ShowSnackbar{Text: fe.Title, ActionLabel: ActionRetry, Action: domain.RetryMessage{}})
	default:
		cur.Error = fe.Banner()
		vm.setState(cur)
	}
}

// --- clearing ---

func (vm *ChatViewModel) clear() {
	old := vm.gen
	old.cancel()
	vm.gen = vm.newGeneration()

	vm.messages = nil
	vm.pinned = nil
	vm.setState(domain.Success{Messages: []domain.Message{}})

	if vm.observing {
		vm.stopObserving()
		vm.resume = true
	}
	prev := vm.clearing
	done := make(chan struct{})
	vm.clearing = done
	vm.pendingClears++

	vm.own.spawn(func() {
		defer close(done)
		old.wg.Wait()
		select {
		case <-prev:
		case <-vm.own.ctx.Done():
			return
		}
		err := vm.uc.Clear.Execute(vm.own.ctx)
		vm.own.post(func() { vm.clearFinished(err) })
	})
}

func (vm *ChatViewModel) clearFinished(err error) {
	vm.pendingClears--
	if vm.pendingClears == 0 && vm.resume {
		vm.resume = false
		vm.startObserving()
	}
	if err == nil {
		return
	}
	kind := domain.KindOf(err)
	if kind == domain.KindCanceled {
		return
	}
	vm.logger.Warn("clear conversation failed", "kind", string(kind), "error", err)
	if cur, ok := vm.state.Get().(domain.Success); ok {
		cur.Error = uxerror.Humanize(err).Banner()
		vm.setState(cur)
	}
}

func (vm *ChatViewModel) dismissError() {
	if cur, ok := vm.state.Get().(domain.Success); ok && cur.Error != "" {
		cur.Error = ""
		vm.setState(cur)
	}
}

func (vm *ChatViewModel) newGeneration() *generation {
	vm.nextGen++
	ctx, cancel := context.WithCancel(vm.own.ctx)
	return &generation{id: vm.nextGen, ctx: ctx, cancel: cancel}
}
