package sim

import (
	"fmt"
	"sync"

	"github.com/san-kum/pidsim/internal/dynamo"
)

// Job describes one independent run. Build must return a loop with its own
// controller and plant; Sink may be nil.
type Job struct {
	Name  string
	Build func() (*Loop, error)
	Sink  dynamo.Sink
}

// Ensemble runs jobs in parallel. Runs share no state, so no coordination
// beyond waiting is needed.
type Ensemble struct {
	jobs []Job
}

func NewEnsemble(jobs ...Job) *Ensemble {
	return &Ensemble{jobs: jobs}
}

func (e *Ensemble) Add(job Job) { e.jobs = append(e.jobs, job) }

func (e *Ensemble) Len() int { return len(e.jobs) }

// Run returns results in job order. The first failing job, in job order,
// determines the returned error.
func (e *Ensemble) Run() ([]*Result, error) {
	results := make([]*Result, len(e.jobs))
	errs := make([]error, len(e.jobs))

	var wg sync.WaitGroup
	for i := range e.jobs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			job := e.jobs[idx]
			loop, err := job.Build()
			if err != nil {
				errs[idx] = fmt.Errorf("%s: %w", job.Name, err)
				return
			}

			res, err := loop.Run(job.Sink)
			if res != nil {
				res.Name = job.Name
			}
			results[idx] = res
			if err != nil {
				errs[idx] = fmt.Errorf("%s: %w", job.Name, err)
			}
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
