// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package scheduler implements the PeriodicScheduler (stage H): one
worker goroutine per PERIODIC root, ticking every second so shutdown
latency is bounded regardless of how long the configured PERIOD is,
per spec section 5's cancellation model. Go's goroutines replace the
original's native threads; Launch/Cancel keep the same two-call
lifecycle the spec describes ("launch returns success/failure of
thread creation", "cancel signals the worker") even though goroutine
creation in Go cannot itself fail.
*/
package scheduler

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lelanthran/kubeka/executor"
	"github.com/lelanthran/kubeka/node"
)

const maxConsecutiveFailures = 10

// Status is a worker's terminal state, read after Cancel or after the
// worker exits on its own (counter exhaustion or failure threshold).
type Status struct {
	Completed bool
	ExitCode  int
}

// Worker runs one PERIODIC root on its own goroutine, re-invoking ex on
// every tick of the root's PERIOD until cancelled, its COUNTER reaches
// zero, or more than ten consecutive invocations fail.
type Worker struct {
	root *node.Node
	ex   *executor.Executor

	endflag int32 // atomic; nonzero means "stop"
	done    chan struct{}

	mu     sync.Mutex
	status Status
}

// NewWorker returns a Worker that will run root via ex once Launch is
// called.
func NewWorker(root *node.Node, ex *executor.Executor) *Worker {
	return &Worker{root: root, ex: ex, done: make(chan struct{})}
}

// Launch parses root's PERIOD and starts the worker goroutine. It
// returns an error if PERIOD is absent or malformed, the only way
// "thread creation" can fail in this port.
func (w *Worker) Launch() error {
	unit, n, err := node.ParsePeriod(w.root.Sym.GetString(node.KeyPeriod))
	if err != nil {
		return err
	}
	period := unit * time.Duration(n)
	go w.run(period)
	return nil
}

// Cancel signals the worker to stop at its next 1 s poll and blocks
// until it has exited.
func (w *Worker) Cancel() {
	atomic.StoreInt32(&w.endflag, 1)
	<-w.done
}

// Status returns the worker's terminal state. It is only meaningful
// after Cancel returns or the worker has exited on its own.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Worker) run(period time.Duration) {
	defer close(w.done)

	remaining := period
	hasCounter := w.root.Sym.Exists(node.KeyCounter)
	counter, _ := w.root.Sym.GetInt(node.KeyCounter)

	consecutiveFailures := 0
	lastRC := 0

	for atomic.LoadInt32(&w.endflag) == 0 {
		if hasCounter && counter <= 0 {
			break
		}

		time.Sleep(time.Second)
		if atomic.LoadInt32(&w.endflag) != 0 {
			break
		}
		remaining -= time.Second
		if remaining > 0 {
			continue
		}
		remaining = period

		if hasCounter {
			counter--
			w.root.Sym.Force(node.KeyCounter, strconv.Itoa(counter))
		}

		lastRC = w.ex.Run(w.root)
		if lastRC != 0 {
			consecutiveFailures++
			if consecutiveFailures > maxConsecutiveFailures {
				break
			}
		} else {
			consecutiveFailures = 0
		}
	}

	w.mu.Lock()
	w.status = Status{Completed: true, ExitCode: lastRC}
	w.mu.Unlock()
}
