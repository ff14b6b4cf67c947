/*
Package worker runs a fixed number of workers against one shared task queue
and coordinates the end of a run.

# Overview

Each run builds a fresh queue.TaskQueue, enqueues every task, and starts
PoolSize workers bound to it. Every worker follows the same state machine:

	idle_wait -> executing -> idle_wait -> ... -> terminated

From idle_wait a worker calls TryDequeue with the configured IdleTimeout.
A task moves it to executing: it emits Started, performs the work, calls
MarkDone, emits Finished and DurationReported, and returns to idle_wait.
An empty timeout moves it to terminated: it records its idle signal, emits
Shutdown and exits. Terminated is absorbing.

# Shutdown Modes

ShutdownOnIdleTimeout (the default) stops a worker on its first empty
timeout. The protocol assumes the queue is fully populated before the run
starts: a task submitted after every worker timed out is never served, and
Handle.Submit rejects it.

ShutdownOnClose stops workers on an explicit close instead. Empty timeouts
only count idle cycles; workers exit once the queue is closed and drained.
Handle.Wait closes the queue, or the producer may call Handle.CloseQueue.

# Coordination

Handle.Wait waits in two phases: first for the queue's Join, which returns
once every task was acknowledged, then for every worker to terminate. Only
then does it emit AllDone, so no worker can report a stray Shutdown after the
driver believes the run is finished.

# Faults

A panic or error inside the work is recovered into a *types.TaskError. The
task is still acknowledged so Join completes, the worker emits Failed, and
the configured fault.Handler decides the rest: ContinueOnError lets the
worker go on, FailFast cancels the run, abandons pending tasks and makes
Wait return types.ErrRunAborted.

# Usage Examples

	pool, err := worker.NewPool(&worker.PoolConfig{
		PoolSize:    2,
		IdleTimeout: time.Second,
		TimeUnit:    time.Second,
	})
	if err != nil {
		return err
	}

	result, err := pool.Simulate(ctx, tasks, observer.NewLogObserver(log))
	if err != nil {
		return err
	}
	fmt.Println(result.Stats.CompletedPerWorker)
*/
package worker
