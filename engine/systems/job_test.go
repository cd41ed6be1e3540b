package systems

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, js *JobSystem) int {
	t.Helper()
	n := 0
	require.Eventually(t, func() bool {
		n += js.Update()
		return js.Pending() == 0
	}, 5*time.Second, time.Millisecond)
	return n
}

func TestJobSystemRunsOnWorkersAndCompletesOnUpdate(t *testing.T) {
	js, err := NewJobSystem(4, 16)
	require.NoError(t, err)
	defer js.Shutdown()

	var ran atomic.Int32
	results := map[int]int{}
	for i := 0; i < 10; i++ {
		i := i
		js.Submit(JobTask{
			Name: "square",
			Run: func() (interface{}, error) {
				ran.Add(1)
				return i * i, nil
			},
			// Only touched from Update, so no lock.
			OnComplete: func(result interface{}) { results[i] = result.(int) },
		})
	}

	assert.Equal(t, 10, drain(t, js))
	assert.Equal(t, int32(10), ran.Load())
	assert.Len(t, results, 10)
	assert.Equal(t, 81, results[9])
}

func TestJobSystemFailure(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	defer js.Shutdown()

	boom := errors.New("corrupt clip")
	var failures []error
	completed := false
	js.AddWorkNonBlocking(JobTask{
		Name:       "decode",
		Run:        func() (interface{}, error) { return nil, boom },
		OnComplete: func(interface{}) { completed = true },
		OnFailure:  func(err error) { failures = append(failures, err) },
	})
	js.AddWorkNonBlocking(JobTask{
		Name:      "panics",
		Run:       func() (interface{}, error) { panic("index out of range") },
		OnFailure: func(err error) { failures = append(failures, err) },
	})

	drain(t, js)
	assert.False(t, completed)
	require.Len(t, failures, 2)
	assert.Contains(t, failures, boom)
}

func TestJobSystemAssignsIDs(t *testing.T) {
	js, err := NewJobSystem(1, 2)
	require.NoError(t, err)
	defer js.Shutdown()

	a := js.Submit(JobTask{Run: func() (interface{}, error) { return nil, nil }})
	b := js.Submit(JobTask{Run: func() (interface{}, error) { return nil, nil }})
	assert.NotEqual(t, a, b)
	drain(t, js)
}

func TestNewJobSystemValidates(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}
