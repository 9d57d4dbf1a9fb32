package favorites

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloader_LastRequestWins(t *testing.T) {
	var r Reloader
	started := make(chan struct{})
	firstDone := make(chan error, 1)

	go func() {
		firstDone <- r.Run(context.Background(), func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-started

	ran := false
	err := r.Run(context.Background(), func(ctx context.Context) error {
		ran = true
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.True(t, ran)

	select {
	case err := <-firstDone:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("first run was not cancelled")
	}
}

func TestReloader_ReturnsFnError(t *testing.T) {
	var r Reloader
	boom := errors.New("boom")
	assert.ErrorIs(t, r.Run(context.Background(), func(context.Context) error { return boom }), boom)
	assert.NoError(t, r.Run(context.Background(), func(context.Context) error { return nil }))
}

func TestReloader_ReleasesContext(t *testing.T) {
	var r Reloader
	var captured context.Context
	require.NoError(t, r.Run(context.Background(), func(ctx context.Context) error {
		captured = ctx
		return nil
	}))
	assert.Error(t, captured.Err(), "context is released after Run returns")
}
