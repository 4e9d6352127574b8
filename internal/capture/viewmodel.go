package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/mindtrail-backend/internal/client"
	"github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

const DefaultRecent = 5

// Source is the slice of the API client the view-model drives.
type Source interface {
	Subscribe(ctx context.Context, limit int) (<-chan client.Snapshot, error)
	Reflect(ctx context.Context, in client.CaptureInput) (client.ReflectResult, error)
}

type State struct {
	Text     string
	Context  domain.CaptureContext
	Tags     []string
	TagInput string
	Items    []Item
	Loading  bool
	Error    string
	Saving   bool
}

func (s State) HasText() bool { return strings.TrimSpace(s.Text) != "" }

func (s State) clone() State {
	out := s
	out.Tags = append([]string(nil), s.Tags...)
	out.Items = append([]Item(nil), s.Items...)
	return out
}

type Option func(*ViewModel)

// WithClock overrides the time source used for timestamp fallbacks.
func WithClock(now func() time.Time) Option {
	return func(vm *ViewModel) {
		if now != nil {
			vm.now = now
		}
	}
}

// OnChange registers a callback run after every state change, outside the lock.
func OnChange(fn func(State)) Option {
	return func(vm *ViewModel) { vm.onChange = fn }
}

// WithLimit caps how many captures each snapshot carries.
func WithLimit(n int) Option {
	return func(vm *ViewModel) { vm.limit = n }
}

// ViewModel holds the capture form and the live list for one user.
type ViewModel struct {
	log      *logger.Logger
	src      Source
	now      func() time.Time
	onChange func(State)
	limit    int

	mu      sync.Mutex
	state   State
	started bool
	closed  bool

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewViewModel(log *logger.Logger, src Source, opts ...Option) *ViewModel {
	if log == nil {
		log = logger.Nop()
	}
	vm := &ViewModel{
		log:   log.With("service", "CaptureViewModel"),
		src:   src,
		now:   time.Now,
		state: State{Context: domain.DefaultCaptureContext, Tags: []string{}, Items: []Item{}},
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state.clone()
}

func (vm *ViewModel) update(fn func(*State)) {
	vm.mu.Lock()
	fn(&vm.state)
	snap := vm.state.clone()
	vm.mu.Unlock()
	if vm.onChange != nil {
		vm.onChange(snap)
	}
}

func (vm *ViewModel) SetText(text string) {
	vm.update(func(s *State) { s.Text = text })
}

func (vm *ViewModel) SetTagInput(v string) {
	vm.update(func(s *State) { s.TagInput = v })
}

func (vm *ViewModel) SetContext(raw string) error {
	c, err := domain.ParseCaptureContext(raw)
	if err != nil {
		return err
	}
	vm.update(func(s *State) { s.Context = c })
	return nil
}

// Start subscribes to the live list. A failed subscribe or a snapshot error
// leaves the last items in place and sets Error; there is no reconnect.
func (vm *ViewModel) Start(ctx context.Context) error {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return errors.New("view-model closed")
	}
	if vm.started {
		vm.mu.Unlock()
		return errors.New("view-model already started")
	}
	vm.started = true
	vm.state.Loading = true
	vm.mu.Unlock()

	vm.log.Info("capture_subscribe_start")

	ctx, cancel := context.WithCancel(ctx)
	updates, err := vm.src.Subscribe(ctx, vm.limit)
	if err != nil {
		cancel()
		vm.log.Error("capture_subscribe_error", "error", err)
		vm.update(func(s *State) {
			s.Error = err.Error()
			s.Loading = false
		})
		return err
	}

	done := make(chan struct{})
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		cancel()
		return errors.New("view-model closed")
	}
	vm.cancel = cancel
	vm.done = done
	vm.mu.Unlock()

	go vm.consume(ctx, updates, done)
	return nil
}

func (vm *ViewModel) consume(ctx context.Context, updates <-chan client.Snapshot, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if snap.Err != nil {
				vm.log.Error("capture_snapshot_error", "error", snap.Err)
				vm.update(func(s *State) {
					s.Error = snap.Err.Error()
					s.Loading = false
				})
				return
			}
			items := MapDocuments(vm.log, snap.Docs, vm.now())
			vm.log.Debug("capture_snapshot_received", "count", len(items))
			vm.update(func(s *State) {
				s.Items = items
				s.Loading = false
			})
		}
	}
}

// AddTag appends the trimmed tag input unless empty or already present, then clears the input.
func (vm *ViewModel) AddTag() {
	vm.update(func(s *State) {
		tag := strings.TrimSpace(s.TagInput)
		if tag == "" {
			return
		}
		if !containsString(s.Tags, tag) {
			s.Tags = append(s.Tags, tag)
		}
		s.TagInput = ""
	})
}

func (vm *ViewModel) RemoveTag(tag string) {
	vm.update(func(s *State) {
		out := s.Tags[:0:0]
		for _, t := range s.Tags {
			if t != tag {
				out = append(out, t)
			}
		}
		s.Tags = out
	})
}

// ApplyTemplate replaces the text with the template body.
func (vm *ViewModel) ApplyTemplate(key string) error {
	tpl, ok := domain.LookupTemplate(key)
	if !ok {
		return fmt.Errorf("unknown template %q", key)
	}
	vm.update(func(s *State) { s.Text = tpl.Text })
	return nil
}

// Save posts the current draft through the reflect endpoint. It is a no-op when
// the text is blank or another save is in flight. Success resets the draft.
func (vm *ViewModel) Save(ctx context.Context) (client.ReflectResult, error) {
	vm.mu.Lock()
	trimmed := strings.TrimSpace(vm.state.Text)
	if trimmed == "" || vm.state.Saving {
		vm.mu.Unlock()
		return client.ReflectResult{}, nil
	}
	vm.state.Saving = true
	vm.state.Error = ""
	in := client.CaptureInput{
		TextRaw: trimmed,
		Context: string(vm.state.Context),
		Tags:    append([]string{}, vm.state.Tags...),
	}
	vm.mu.Unlock()

	vm.log.Info("save_capture_attempt", "text_length", len(trimmed), "tags_count", len(in.Tags), "context", in.Context)

	res, err := vm.src.Reflect(ctx, in)
	if err != nil {
		vm.log.Error("save_capture_failure", "error", err)
		vm.update(func(s *State) {
			s.Saving = false
			s.Error = err.Error()
		})
		return client.ReflectResult{}, err
	}

	vm.log.Info("save_capture_success", "capture_id", res.ID, "traceId", res.TraceID)
	vm.update(func(s *State) {
		s.Saving = false
		s.Text = ""
		s.Tags = []string{}
		s.Context = domain.DefaultCaptureContext
	})
	return res, nil
}

// Recent returns the first n items, DefaultRecent when n <= 0.
func (vm *ViewModel) Recent(n int) []Item {
	if n <= 0 {
		n = DefaultRecent
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.state.Items) < n {
		n = len(vm.state.Items)
	}
	return append([]Item(nil), vm.state.Items[:n]...)
}

// Close stops the subscription and waits for it to wind down. Safe to call repeatedly.
func (vm *ViewModel) Close() {
	vm.closeOnce.Do(func() {
		vm.mu.Lock()
		vm.closed = true
		cancel, done := vm.cancel, vm.done
		vm.mu.Unlock()
		if cancel == nil {
			return
		}
		cancel()
		<-done
		vm.log.Info("capture_unsubscribe")
	})
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
