package conversation

import (
	"sync"
	"testing"

	"github.com/hupe1980/agentorg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to  string
	env core.Envelope
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeSender) Send(to string, env core.Envelope) core.Mail {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, env: env})
	return core.Mail{To: to, From: env.From, Subject: env.Subject, Body: env.Body}
}

func (f *fakeSender) recipients(subject core.Subject) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.env.Subject == subject {
			out = append(out, s.to)
		}
	}
	return out
}

func TestStart_AddsInitiatorAndMailsOthers(t *testing.T) {
	s := &fakeSender{}
	var snapshots [][]core.Conversation
	m := NewManager(s, func(o *Options) { o.OnChange = func(c []core.Conversation) { snapshots = append(snapshots, c) } })

	conv := m.Start("Editor", []string{"Writer", "Illustrator", "Editor"}, "Cover art", "Ideas?", "t1")

	assert.Equal(t, []string{"Editor", "Writer", "Illustrator"}, conv.Participants)
	assert.Equal(t, core.ConversationActive, conv.Status)
	require.Len(t, conv.History, 1)
	assert.Equal(t, "Editor", conv.History[0].Speaker)
	assert.Equal(t, []string{"Writer", "Illustrator"}, s.recipients(core.SubjectConversationStart))
	require.Len(t, snapshots, 1)
	assert.Len(t, snapshots[0], 1)
}

func TestContribute(t *testing.T) {
	s := &fakeSender{}
	m := NewManager(s)
	conv := m.Start("Editor", []string{"Writer"}, "Title", "", "")

	require.NoError(t, m.Contribute(conv.ID, "Writer", "How about 'The Fox'?"))
	got, ok := m.Get(conv.ID)
	require.True(t, ok)
	require.Len(t, got.History, 1)
	assert.Equal(t, []string{"Editor"}, s.recipients(core.SubjectConversationMessage))

	err := m.Contribute(conv.ID, "Stranger", "hi")
	assert.ErrorIs(t, err, core.ErrNotParticipant)

	err = m.Contribute("missing", "Writer", "hi")
	assert.ErrorIs(t, err, core.ErrConversationNotFound)

	got, _ = m.Get(conv.ID)
	assert.Len(t, got.History, 1)
}

func TestResolve_FreezesHistoryAndReleasesTask(t *testing.T) {
	s := &fakeSender{}
	var released []core.Conversation
	m := NewManager(s, func(o *Options) { o.Release = func(c core.Conversation) { released = append(released, c) } })
	conv := m.Start("Editor", []string{"Writer"}, "Title", "", "task-1")

	require.NoError(t, m.Resolve(conv.ID, "Editor", "Title is 'The Fox'"))

	err := m.Contribute(conv.ID, "Writer", "late idea")
	assert.ErrorIs(t, err, core.ErrConversationResolved)

	got, _ := m.Get(conv.ID)
	assert.Equal(t, core.ConversationResolved, got.Status)
	assert.Empty(t, got.History)
	assert.Equal(t, "Title is 'The Fox'", got.Summary)
	assert.Equal(t, []string{"Writer"}, s.recipients(core.SubjectConversationResolved))
	require.Len(t, released, 1)
	assert.Equal(t, "task-1", released[0].TaskID)

	assert.ErrorIs(t, m.Resolve(conv.ID, "Editor", ""), core.ErrConversationResolved)
}

func TestResolve_NonParticipantRejected(t *testing.T) {
	m := NewManager(&fakeSender{})
	conv := m.Start("Editor", []string{"Writer"}, "Title", "", "")
	assert.ErrorIs(t, m.Resolve(conv.ID, "Stranger", ""), core.ErrNotParticipant)
	got, _ := m.Get(conv.ID)
	assert.Equal(t, core.ConversationActive, got.Status)
}

func TestContribute_TurnLimitResolves(t *testing.T) {
	s := &fakeSender{}
	m := NewManager(s, func(o *Options) { o.MaxTurns = 2 })
	conv := m.Start("Editor", []string{"Writer"}, "Title", "first", "")

	require.NoError(t, m.Contribute(conv.ID, "Writer", "second"))

	got, _ := m.Get(conv.ID)
	assert.Equal(t, core.ConversationResolved, got.Status)
	assert.Len(t, got.History, 2)
	assert.ElementsMatch(t, []string{"Editor", "Writer"}, s.recipients(core.SubjectConversationResolved))
}

func TestActiveForAndReset(t *testing.T) {
	var last []core.Conversation
	m := NewManager(&fakeSender{}, func(o *Options) { o.OnChange = func(c []core.Conversation) { last = c } })
	a := m.Start("Editor", []string{"Writer"}, "A", "", "")
	m.Start("Editor", []string{"Illustrator"}, "B", "", "")
	require.NoError(t, m.Resolve(a.ID, "", "done"))

	active := m.ActiveFor("Editor")
	require.Len(t, active, 1)
	assert.Equal(t, "B", active[0].Topic)
	assert.Empty(t, m.ActiveFor("Writer"))

	m.Reset()
	assert.Empty(t, m.List())
	assert.Empty(t, last)
}
