package source

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pbcheck/internal/ports"
)

// flakySource fails the first failures calls of each method with err.
type flakySource struct {
	failures int
	err      error
	lists    int
	opens    int
}

func (f *flakySource) List(context.Context, string) ([]string, error) {
	f.lists++
	if f.lists <= f.failures {
		return nil, f.err
	}
	return []string{"a.pb"}, nil
}

func (f *flakySource) Open(context.Context, string) (io.ReadCloser, error) {
	f.opens++
	if f.opens <= f.failures {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("META")), nil
}

func (f *flakySource) String() string { return "flaky" }

func TestRetry(t *testing.T) {
	transient := errors.New("503 backend error")

	tests := []struct {
		name      string
		failures  int
		err       error
		retries   int
		wantErr   error
		wantCalls int
	}{
		{name: "success first try", failures: 0, err: transient, retries: 3, wantCalls: 1},
		{name: "recovers", failures: 2, err: transient, retries: 3, wantCalls: 3},
		{name: "gives up", failures: 10, err: transient, retries: 2, wantErr: transient, wantCalls: 3},
		{
			name:      "missing object is final",
			failures:  10,
			err:       ports.NewSourceError("flaky", "a.pb", "Open", ports.ErrObjectNotFound),
			retries:   3,
			wantErr:   ports.ErrObjectNotFound,
			wantCalls: 1,
		},
		{name: "no retries", failures: 1, err: transient, retries: 0, wantErr: transient, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flaky := &flakySource{failures: tt.failures, err: tt.err}
			src := Chain(flaky, Retry(tt.retries, time.Millisecond, 5*time.Millisecond))

			rc, err := src.Open(context.Background(), "a.pb")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NoError(t, rc.Close())
			}
			assert.Equal(t, tt.wantCalls, flaky.opens)

			_, err = src.List(context.Background(), "*")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, flaky.lists)
			assert.Equal(t, "flaky", src.String())
		})
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	flaky := &flakySource{failures: 100, err: errors.New("timeout")}
	src := Retry(5, time.Hour, time.Hour)(flaky)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Open(ctx, "a.pb")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, flaky.opens)
}

func TestRetry_DelayIsBounded(t *testing.T) {
	r := &retrySource{baseDelay: 100 * time.Millisecond, maxDelay: time.Second}
	for attempt := range 40 {
		d := r.delay(attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, time.Second)
	}
	first := r.delay(0)
	assert.GreaterOrEqual(t, first, 75*time.Millisecond)
	assert.LessOrEqual(t, first, 125*time.Millisecond)
}
