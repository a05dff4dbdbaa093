package syncclient

import (
	"context"
	"errors"
	"ichat_backend/internal/model"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval matches the server's default chat.poll_interval.
const DefaultPollInterval = 5 * time.Second

var (
	ErrViewClosed  = errors.New("conversation view closed")
	ErrViewStarted = errors.New("conversation view already started")
	ErrNotGroup    = errors.New("conversation is not a group")
)

// API is the part of the server API a ConversationView needs. *Client
// implements it.
type API interface {
	ListMessages(ctx context.Context, conversationID, afterID uint) ([]model.MessageView, error)
	GetConversation(ctx context.Context, conversationID uint) (*model.ConversationInfo, error)
	SendMessage(ctx context.Context, conversationID uint, text string, file *File) (*model.Message, error)
	DeleteMessage(ctx context.Context, messageID uint) error
	AddMembers(ctx context.Context, groupID, conversationID uint, memberIDs []uint) (int64, error)
	RemoveMember(ctx context.Context, groupID, conversationID, userID uint) error
}

// Delta is the change between two snapshots of a conversation, keyed by
// message id.
type Delta struct {
	Added   []model.MessageView
	Removed []uint
}

func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Renderer receives view updates. Calls never overlap. A Renderer must not
// call Close on the view that is rendering to it.
type Renderer interface {
	Apply(d Delta)
	Info(info *model.ConversationInfo)
	Notice(err error)
	Unauthenticated()
}

// ConversationView keeps one open conversation in sync with the server.
//
// Polls are serialized: a tick that fires while a fetch is outstanding is
// skipped. Switching conversation bumps a generation counter and any
// response from an older generation is dropped.
type ConversationView struct {
	api      API
	renderer Renderer
	interval time.Duration

	visCh chan bool

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	closed      bool
	visible     bool
	convID      uint
	generation  uint64
	inFlight    bool
	again       bool
	fetchCancel context.CancelFunc
	order       []uint
	known       map[uint]bool
	info        *model.ConversationInfo

	wg sync.WaitGroup
}

func NewConversationView(api API, renderer Renderer, conversationID uint, interval time.Duration) *ConversationView {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ConversationView{
		api:      api,
		renderer: renderer,
		interval: interval,
		visCh:    make(chan bool),
		visible:  true,
		convID:   conversationID,
		known:    make(map[uint]bool),
	}
}

// Start fetches immediately and then polls every interval until Close or ctx
// is done.
func (v *ConversationView) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.started {
		v.mu.Unlock()
		return ErrViewStarted
	}
	v.started = true
	v.ctx, v.cancel = context.WithCancel(ctx)
	visible := v.visible
	v.mu.Unlock()

	v.wg.Add(1)
	go v.loop(v.ctx, visible)
	v.Refresh()
	return nil
}

func (v *ConversationView) loop(ctx context.Context, visible bool) {
	defer v.wg.Done()

	var ticker *time.Ticker
	var tick <-chan time.Time
	startTicker := func() {
		if ticker == nil {
			ticker = time.NewTicker(v.interval)
			tick = ticker.C
		}
	}
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	if visible {
		startTicker()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			v.requestFetch(false)
		case vis := <-v.visCh:
			if vis {
				startTicker()
				v.requestFetch(true)
			} else {
				stopTicker()
			}
		}
	}
}

// SetVisible pauses polling while the view is hidden. Becoming visible
// again fetches at once and restarts the ticker.
func (v *ConversationView) SetVisible(visible bool) {
	v.mu.Lock()
	if v.closed || v.visible == visible {
		v.mu.Unlock()
		return
	}
	v.visible = visible
	started := v.started
	ctx := v.ctx
	v.mu.Unlock()

	if !started {
		return
	}
	select {
	case v.visCh <- visible:
	case <-ctx.Done():
	}
}

func (v *ConversationView) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

func (v *ConversationView) ConversationID() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convID
}

// Switch points the view at another conversation. Rendered state is reset
// and an outstanding fetch for the previous conversation is cancelled.
func (v *ConversationView) Switch(conversationID uint) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.convID = conversationID
	v.generation++
	v.order = nil
	v.known = make(map[uint]bool)
	v.info = nil
	if v.fetchCancel != nil {
		v.fetchCancel()
	}
	v.mu.Unlock()

	v.Refresh()
}

// Refresh fetches now, or right after the outstanding fetch completes.
func (v *ConversationView) Refresh() {
	v.requestFetch(true)
}

func (v *ConversationView) requestFetch(force bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || !v.started || v.convID == 0 {
		return
	}
	if v.inFlight {
		if force {
			v.again = true
		}
		return
	}
	v.startFetchLocked()
}

func (v *ConversationView) startFetchLocked() {
	v.inFlight = true
	v.again = false
	gen, convID := v.generation, v.convID
	ctx, cancel := context.WithCancel(v.ctx)
	v.fetchCancel = cancel

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer cancel()
		msgs, info, err := v.fetch(ctx, convID)
		v.finish(gen, msgs, info, err)
	}()
}

func (v *ConversationView) fetch(ctx context.Context, convID uint) ([]model.MessageView, *model.ConversationInfo, error) {
	var msgs []model.MessageView
	var info *model.ConversationInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		msgs, err = v.api.ListMessages(gctx, convID, 0)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = v.api.GetConversation(gctx, convID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return msgs, info, nil
}

// finish renders a completed fetch. inFlight stays set until rendering is
// done so renders never overlap.
func (v *ConversationView) finish(gen uint64, msgs []model.MessageView, info *model.ConversationInfo, err error) {
	v.mu.Lock()
	stale := v.closed || gen != v.generation
	var delta Delta
	infoChanged := false
	if !stale && err == nil {
		delta = v.diffLocked(msgs)
		if !reflect.DeepEqual(v.info, info) {
			v.info = info
			infoChanged = true
		}
	}
	v.mu.Unlock()

	if !stale {
		switch {
		case err != nil:
			v.report(err)
		default:
			if !delta.Empty() {
				v.renderer.Apply(delta)
			}
			if infoChanged {
				v.renderer.Info(info)
			}
		}
	}

	v.mu.Lock()
	v.inFlight = false
	v.fetchCancel = nil
	if v.again && !v.closed {
		v.startFetchLocked()
	}
	v.mu.Unlock()
}

func (v *ConversationView) diffLocked(msgs []model.MessageView) Delta {
	var d Delta
	current := make(map[uint]bool, len(msgs))
	order := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		current[m.ID] = true
		order = append(order, m.ID)
		if !v.known[m.ID] {
			d.Added = append(d.Added, m)
		}
	}
	for _, id := range v.order {
		if !current[id] {
			d.Removed = append(d.Removed, id)
		}
	}
	v.order = order
	v.known = current
	return d
}

func (v *ConversationView) report(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if IsUnauthenticated(err) {
		v.renderer.Unauthenticated()
		return
	}
	v.renderer.Notice(err)
}

func (v *ConversationView) groupTarget() (uint, uint, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, 0, ErrViewClosed
	}
	if v.info == nil || !v.info.IsGroup || v.info.GroupID == nil {
		return 0, 0, ErrNotGroup
	}
	return *v.info.GroupID, v.convID, nil
}

// command runs fn and refreshes on success; failures go to Notice.
func (v *ConversationView) command(fn func() error) error {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return ErrViewClosed
	}
	if err := fn(); err != nil {
		v.report(err)
		return err
	}
	v.Refresh()
	return nil
}

func (v *ConversationView) Send(ctx context.Context, text string, file *File) error {
	convID := v.ConversationID()
	return v.command(func() error {
		_, err := v.api.SendMessage(ctx, convID, text, file)
		return err
	})
}

func (v *ConversationView) Delete(ctx context.Context, messageID uint) error {
	return v.command(func() error {
		return v.api.DeleteMessage(ctx, messageID)
	})
}

func (v *ConversationView) AddMembers(ctx context.Context, memberIDs []uint) (int64, error) {
	groupID, convID, err := v.groupTarget()
	if err != nil {
		return 0, err
	}
	var added int64
	err = v.command(func() error {
		var cerr error
		added, cerr = v.api.AddMembers(ctx, groupID, convID, memberIDs)
		return cerr
	})
	return added, err
}

func (v *ConversationView) RemoveMember(ctx context.Context, userID uint) error {
	groupID, convID, err := v.groupTarget()
	if err != nil {
		return err
	}
	return v.command(func() error {
		return v.api.RemoveMember(ctx, groupID, convID, userID)
	})
}

// Close stops polling, cancels any outstanding fetch and waits for every
// goroutine the view started.
func (v *ConversationView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	if v.cancel != nil {
		v.cancel()
	}
	v.mu.Unlock()

	v.wg.Wait()
}
