package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatest_DropsOutdatedSnapshots(t *testing.T) {
	var got []string
	l := NewLatest(func(s string) { got = append(got, s) })

	l.Deliver(1, "a")
	l.Deliver(3, "c")
	l.Deliver(2, "b")
	l.Deliver(3, "c again")

	assert.Equal(t, []string{"a", "c"}, got)
}

func TestLatest_NilListener(t *testing.T) {
	l := NewLatest[int](nil)
	assert.False(t, l.Enabled())
	l.Deliver(1, 1)

	var nilLatest *Latest[int]
	nilLatest.Deliver(1, 1)
}
