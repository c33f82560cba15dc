package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-io/api"
	"github.com/momentics/hioload-io/fake"
	"github.com/momentics/hioload-io/lifecycle"
)

func TestConnection_CloseFinalizesEverything(t *testing.T) {
	h := newHarness(t)
	hd := fake.NewHandler(nil, true)

	s1 := h.session(t, 0, hd)
	s2 := h.session(t, 0, hd)
	require.NoError(t, h.conn.Send(s1, time.Second, []byte("one")))
	require.NoError(t, h.conn.Send(s2, time.Second, []byte("two")))

	m, err := lifecycle.NewMessage(h.conn)
	require.NoError(t, err)
	r, err := m.NewRequest(0)
	require.NoError(t, err)

	require.NoError(t, h.conn.Close())
	assert.True(t, h.conn.Closed())
	assert.True(t, h.conn.TornDown())
	assert.Equal(t, 1, h.teardowns)

	assert.Len(t, hd.Completions(), 2)
	for _, c := range hd.Completions() {
		assert.False(t, c.Replied)
	}
	assert.Equal(t, []*lifecycle.Request{r}, h.hooks.ServerDone())
	assert.True(t, m.Arena().Freed())
	assert.Empty(t, h.conn.Messages())
	assert.Zero(t, h.conn.Output().Len())

	assert.NoError(t, h.conn.Close())
	assert.Equal(t, 1, h.teardowns)
	assert.ErrorIs(t, h.conn.Send(h.session(t, 0, hd), time.Second), api.ErrConnectionClosed)
}

func TestConnection_CloseAggregatesHandlerErrors(t *testing.T) {
	h := newHarness(t)
	e1, e2 := errors.New("first"), errors.New("second")
	require.NoError(t, h.conn.Send(h.session(t, 0, fake.NewHandler(e1, true)), time.Second))
	require.NoError(t, h.conn.Send(h.session(t, 0, fake.NewHandler(e2, true)), time.Second))
	misconfigured := h.session(t, 0, nil)
	require.NoError(t, h.conn.Send(misconfigured, time.Second))

	err := h.conn.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.ErrorIs(t, err, api.ErrMisconfiguredSession)
	assert.True(t, misconfigured.Arena().Freed())
	assert.Equal(t, 1, h.teardowns)
}

func TestConnection_CloseReleasesQueuedResponses(t *testing.T) {
	h := newHarness(t)
	m, err := lifecycle.NewMessage(h.conn)
	require.NoError(t, err)
	r, err := m.NewRequest(4)
	require.NoError(t, err)
	m.Retain()
	m.Complete(r)
	h.conn.Output().Push(&lifecycle.OutBuffer{Data: r.Out, Owner: m.Arena().ID(), OnRelease: m.OnBufferRelease})

	require.NoError(t, h.conn.Close())
	assert.True(t, m.Arena().Freed())
	assert.Equal(t, 1, h.hooks.ServerDoneCount(r))
}

func TestConnection_CreatorDestroyAfterClose(t *testing.T) {
	h := newHarness(t)
	m, err := lifecycle.NewMessage(h.conn)
	require.NoError(t, err)
	_, err = m.NewRequest(0)
	require.NoError(t, err)

	require.NoError(t, h.conn.Close())
	require.True(t, m.Arena().Freed())

	assert.NotPanics(t, func() { m.Destroy(true) })
	assert.NotPanics(t, func() { m.Destroy(true) })
	assert.Equal(t, 1, len(h.hooks.ServerDone()))
}

func TestConnection_CloseKeepsInflightReference(t *testing.T) {
	h := newHarness(t)
	m, err := lifecycle.NewMessage(h.conn)
	require.NoError(t, err)
	r, err := m.NewRequest(0)
	require.NoError(t, err)
	m.Retain()

	require.NoError(t, h.conn.Close())
	assert.False(t, m.Arena().Freed())
	m.Destroy(true)
	assert.EqualValues(t, 1, m.Arena().Ref())

	m.Complete(r)
	m.Destroy(false)
	assert.True(t, m.Arena().Freed())
	assert.Equal(t, 1, h.hooks.ServerDoneCount(r))
}

func TestConnection_ReplyUnknown(t *testing.T) {
	h := newHarness(t)
	err := h.conn.Reply(42, []byte("x"))
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, api.ErrCodeNotFound, api.CodeOf(err))
}

func TestConnection_PacketIDsMonotonic(t *testing.T) {
	h := newHarness(t)
	var ids []uint64
	for i := 0; i < 3; i++ {
		s := h.session(t, 0, fake.NewHandler(nil, true))
		require.NoError(t, h.conn.Send(s, time.Second))
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []uint64{1, 2, 3}, ids)
	assert.Len(t, h.conn.PendingSessions(), 3)
	assert.NotEqual(t, h.conn.ID().String(), newHarness(t).conn.ID().String())
}

func TestConnection_PostRunsOnLoop(t *testing.T) {
	h := newHarness(t)
	var ran bool
	require.NoError(t, h.conn.Post(func() { ran = true }))
	assert.False(t, ran)
	h.loop.RunPending()
	assert.True(t, ran)
	assert.Same(t, h.loop, h.conn.Loop())
}

func TestConnection_DefaultsApplied(t *testing.T) {
	c, err := lifecycle.NewConnection(lifecycle.ConnConfig{})
	require.NoError(t, err)
	assert.Equal(t, 4096, c.DefaultMessageSize())
	require.NotNil(t, c.Loop())

	s, err := lifecycle.NewSession(0)
	require.NoError(t, err)
	s.SetHandler(fake.NewHandler(nil, true))
	require.NoError(t, c.Send(s, 0))
	assert.Equal(t, 5*time.Second, s.Timeout())
	require.NoError(t, c.Close())
	assert.True(t, c.TornDown())
}
