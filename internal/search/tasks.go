package search

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrTaskPanic = errors.New("task panicked")

// Bounded group of independent tasks. A failing task (error or panic) is
// logged and counted; it never cancels or fails its siblings.
type taskGroup struct {
	g       errgroup.Group
	phase   Phase
	log     *zap.SugaredLogger
	metrics *Metrics
	failed  atomic.Int64
}

func newTaskGroup(phase Phase, nprocs int, log *zap.SugaredLogger, metrics *Metrics) *taskGroup {
	tg := &taskGroup{phase: phase, log: log, metrics: metrics}
	tg.g.SetLimit(max(nprocs, 1))
	return tg
}

func (tg *taskGroup) Go(index int, task func() error) {
	tg.g.Go(func() error {
		err := runRecovered(task)
		tg.metrics.taskDone(tg.phase, err)
		if err != nil {
			tg.failed.Add(1)
			tg.log.Warnf("%s task %d failed: %s", tg.phase, index, err)
		}
		return nil
	})
}

// Waits for all tasks and returns the number that failed
func (tg *taskGroup) Wait() int {
	_ = tg.g.Wait()
	failed := int(tg.failed.Load())
	if failed > 0 {
		tg.log.Warnf("%d %s tasks failed; their clusters are missing from set X", failed, tg.phase)
	}
	return failed
}

func runRecovered(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return task()
}
