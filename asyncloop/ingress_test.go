package asyncloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskQueue_PushDrainPreservesOrder(t *testing.T) {
	q := newTaskQueue()
	var order []int
	q.push(func() { order = append(order, 1) })
	q.push(func() { order = append(order, 2) })

	assert.Equal(t, 2, q.len())
	jobs := q.drain()
	assert.Equal(t, 0, q.len())

	for _, j := range jobs {
		j()
	}
	assert.Equal(t, []int{1, 2}, order)
}

func TestTaskQueue_DrainDuringPushDoesNotDeadlock(t *testing.T) {
	q := newTaskQueue()
	q.push(func() {})
	jobs := q.drain()
	for _, j := range jobs {
		q.push(func() {})
		j()
	}
	assert.Equal(t, 1, q.len())
}

func TestMicrotaskQueue_DrainAllRunsNestedlyScheduledTasks(t *testing.T) {
	q := newMicrotaskQueue()
	var order []int
	q.push(func() {
		order = append(order, 1)
		q.push(func() { order = append(order, 2) })
	})

	ran := q.drainAll(0, func(t Task) { t() })

	assert.Equal(t, 2, ran)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 0, q.len())
}
