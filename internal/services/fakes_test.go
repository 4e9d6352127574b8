package services

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	capturerepo "github.com/yungbote/mindtrail-backend/internal/data/repos/capture"
	types "github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/platform/openai"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
)

type fakeOpenAI struct {
	mu       sync.Mutex
	calls    int
	lastUser string
	json     bool
	out      openai.Completion
	err      error
	block    bool
}

func (f *fakeOpenAI) record(user string, json bool) {
	f.mu.Lock()
	f.calls++
	f.lastUser = user
	f.json = json
	f.mu.Unlock()
}

func (f *fakeOpenAI) answer(ctx context.Context) (openai.Completion, error) {
	if f.block {
		<-ctx.Done()
		return openai.Completion{}, ctx.Err()
	}
	return f.out, f.err
}

func (f *fakeOpenAI) GenerateText(ctx context.Context, system, user string) (openai.Completion, error) {
	f.record(user, false)
	return f.answer(ctx)
}

func (f *fakeOpenAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (openai.Completion, error) {
	f.record(user, true)
	return f.answer(ctx)
}

func (f *fakeOpenAI) Model() string { return "fake-model" }

type fakeRepo struct {
	mu    sync.Mutex
	rows  []*types.Capture
	next  int
	err   error
	added int
}

func (r *fakeRepo) Add(ctx context.Context, tx *gorm.DB, ref capturerepo.CollectionRef, c *types.Capture) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	if ref.UserID == "" {
		return "", capturerepo.ErrMissingUser
	}
	r.next++
	r.added++
	c.ID = "id-" + string(rune('a'+r.next-1))
	c.UserID = ref.UserID
	cp := *c
	r.rows = append(r.rows, &cp)
	return c.ID, nil
}

func (r *fakeRepo) List(ctx context.Context, tx *gorm.DB, ref capturerepo.CollectionRef, limit int) ([]*types.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []*types.Capture{}
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID == ref.UserID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) Count(ctx context.Context, tx *gorm.DB, ref capturerepo.CollectionRef) (int64, error) {
	items, err := r.List(ctx, tx, ref, 0)
	return int64(len(items)), err
}

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
	err  error
}

func (e *recordingEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
	return e.err
}

var errBoom = errors.New("boom")
