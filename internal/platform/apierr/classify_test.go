package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Category
	}{
		{"validation", errors.New("validation failed"), CategoryValidation},
		{"required", errors.New("Reflection text required"), CategoryValidation},
		{"invalid upper", errors.New("INVALID payload"), CategoryValidation},
		{"network timeout", errors.New("network timeout"), CategoryUpstream},
		{"upstream", errors.New("upstream returned 502"), CategoryUpstream},
		{"deadline", fmt.Errorf("openai call: %w", context.DeadlineExceeded), CategoryInternal},
		{"boom", errors.New("boom"), CategoryInternal},
		{"string value", "not an error object", CategoryInternal},
		{"nil", nil, CategoryInternal},
		{"int", 42, CategoryInternal},
		{"validation beats upstream", errors.New("invalid upstream response"), CategoryValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.in))
		})
	}
}

func TestUpstreamKeepsCauseCategory(t *testing.T) {
	e := Upstream(errors.New("dial tcp: network is unreachable"))
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, CategoryUpstream, e.Category)

	e = Upstream(errors.New("openai http 500: boom"))
	assert.Equal(t, CategoryInternal, e.Category)
	assert.Equal(t, Classify(e), e.Category)
}

func TestAsWrapsUnknownErrors(t *testing.T) {
	assert.Nil(t, As(nil))

	v := Validation(errors.New("text required"))
	wrapped := fmt.Errorf("handler: %w", v)
	assert.Same(t, v, As(wrapped))

	got := As(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, CategoryInternal, got.Category)
}
