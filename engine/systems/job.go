package systems

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/marionette/engine/core"
)

// JobTask is a unit of background work. Run executes on a worker goroutine;
// OnComplete and OnFailure run later on the goroutine that calls Update.
type JobTask struct {
	ID   uuid.UUID
	Name string

	Run        func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result interface{}
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu      sync.Mutex
	results []jobResult
	pending int
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := js.run(job)
				if err != nil {
					core.LogError("job %s (%s) failed: %s", job.Name, job.ID, err)
				}
				js.mu.Lock()
				js.results = append(js.results, jobResult{task: job, result: result, err: err})
				js.mu.Unlock()
			}
		}()
	}
}

// run turns a panicking job into a failed one so one bad asset does not
// take the worker pool down.
func (js *JobSystem) run(job JobTask) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run()
}

/**
 * @brief Shuts the job system down. Queued jobs still run; their callbacks
 * are dropped unless Update is called afterwards.
 */
func (js *JobSystem) Shutdown() error {
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}

/**
 * @brief Updates the job system. Should happen once an update cycle, on the
 * thread that owns whatever the callbacks touch. Returns how many jobs finished.
 */
func (js *JobSystem) Update() int {
	js.mu.Lock()
	done := js.results
	js.results = nil
	js.pending -= len(done)
	js.mu.Unlock()

	for _, r := range done {
		if r.err != nil {
			if r.task.OnFailure != nil {
				r.task.OnFailure(r.err)
			}
			continue
		}
		if r.task.OnComplete != nil {
			r.task.OnComplete(r.result)
		}
	}
	return len(done)
}

// Pending is the number of submitted jobs whose callbacks have not run yet.
func (js *JobSystem) Pending() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.pending
}

// AddWorkNonBlocking queues work without waiting for room in the queue.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) uuid.UUID {
	jt = js.prepare(jt)
	go func() { js.jobQueue <- jt }()
	return jt.ID
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param info The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) uuid.UUID {
	jt = js.prepare(jt)
	js.jobQueue <- jt
	return jt.ID
}

func (js *JobSystem) prepare(jt JobTask) JobTask {
	if jt.ID == uuid.Nil {
		jt.ID = uuid.New()
	}
	js.mu.Lock()
	js.pending++
	js.mu.Unlock()
	return jt
}
