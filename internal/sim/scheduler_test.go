package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsInTickThenInsertionOrder(t *testing.T) {
	s := NewScheduler()
	var got []string
	s.After(2, "", func() { got = append(got, "b") })
	s.After(1, "", func() { got = append(got, "a") })
	s.After(2, "", func() { got = append(got, "c") })

	s.Advance()
	assert.Equal(t, []string{"a"}, got)
	s.Advance()
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, s.Pending())
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	ran := 0
	id := s.After(1, "", func() { ran++ })
	s.After(1, "k", func() { ran++ })
	s.After(3, "k", func() { ran++ })
	s.After(1, "other", func() { ran++ })

	assert.True(t, s.Cancel(id))
	assert.False(t, s.Cancel(id))
	assert.Equal(t, 2, s.CancelKey("k"))
	assert.Equal(t, 1, s.Pending())

	for i := 0; i < 5; i++ {
		s.Advance()
	}
	assert.Equal(t, 1, ran)
}

func TestSchedulerTaskMayScheduleMore(t *testing.T) {
	s := NewScheduler()
	var ticks []uint64
	s.After(1, "", func() {
		ticks = append(ticks, s.Now())
		s.After(0, "", func() { ticks = append(ticks, s.Now()) })
		s.After(1, "", func() { ticks = append(ticks, s.Now()) })
	})
	s.Advance()
	s.Advance()
	assert.Equal(t, []uint64{1, 1, 2}, ticks)
}

func TestSchedulerClear(t *testing.T) {
	s := NewScheduler()
	s.After(1, "", func() { t.Fatal("cleared task ran") })
	s.Clear()
	s.Advance()
	assert.Zero(t, s.Pending())
}
