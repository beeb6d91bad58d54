package mail

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentorg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct {
	name string
	*Inbox
}

func (b box) Name() string { return b.name }

func newBox(name string) box { return box{name: name, Inbox: NewInbox()} }

func TestRouter_SendRegistered(t *testing.T) {
	var observed []core.Mail
	r := NewRouter(func(o *Options) { o.OnMail = func(m core.Mail) { observed = append(observed, m) } })
	w := newBox("Writer")
	r.Register(w)

	m := r.Send("Writer", core.Envelope{From: "Editor", Subject: core.SubjectMessage, Body: "hello"})

	assert.Regexp(t, `^mail-\d+-[0-9a-f]{8}$`, m.ID)
	assert.False(t, m.Timestamp.IsZero())
	require.Len(t, r.Log(), 1)
	assert.Equal(t, m, r.Log()[0])
	assert.Equal(t, []core.Mail{m}, observed)
	assert.Equal(t, []core.Mail{m}, w.Pending())
}

func TestRouter_SendUnregisteredIsLoggedOnly(t *testing.T) {
	r := NewRouter()
	m := r.Send("Ghost", core.Envelope{From: "Editor", Subject: core.SubjectMessage})
	assert.Equal(t, []core.Mail{m}, r.Log())
	assert.False(t, r.Registered("Ghost"))
}

func TestRouter_LastRegistrationWins(t *testing.T) {
	r := NewRouter()
	first, second := newBox("Writer"), newBox("Writer")
	r.Register(first)
	r.Register(second)

	r.Send("Writer", core.Envelope{From: "x", Subject: core.SubjectMessage})
	assert.Zero(t, first.Len())
	assert.Equal(t, 1, second.Len())
}

func TestRouter_PreservesSendOrder(t *testing.T) {
	r := NewRouter()
	w := newBox("Writer")
	r.Register(w)
	for _, body := range []string{"a", "b", "c"} {
		r.Send("Writer", core.Envelope{From: "Editor", Subject: core.SubjectMessage, Body: body})
	}
	var got []string
	for _, m := range w.Pending() {
		got = append(got, m.Text())
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestRouter_LogIsCopy(t *testing.T) {
	r := NewRouter()
	r.Send("x", core.Envelope{Subject: core.SubjectMessage})
	log := r.Log()
	log[0].To = "mutated"
	assert.Equal(t, "x", r.Log()[0].To)
}

func TestInbox_NextBlocksUntilDelivery(t *testing.T) {
	in := NewInbox()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	var got core.Mail
	go func() {
		defer wg.Done()
		got, _ = in.Next(ctx)
	}()
	in.Deliver(core.Mail{ID: "m1"})
	wg.Wait()
	assert.Equal(t, "m1", got.ID)
}

func TestInbox_NextHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewInbox().Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInbox_Clear(t *testing.T) {
	in := NewInbox()
	in.Deliver(core.Mail{ID: "a"})
	in.Deliver(core.Mail{ID: "b"})
	assert.Equal(t, 2, in.Clear())
	_, ok := in.TryNext()
	assert.False(t, ok)
}
