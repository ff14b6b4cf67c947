package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jzx17/procsim/pkg/observer"
)

// statusBoard keeps the latest status line of every worker. It is not safe
// for concurrent use and is fed through observer.Serialized.
type statusBoard struct {
	observer.Nop

	status map[int]string
	done   bool
}

func newStatusBoard() *statusBoard {
	return &statusBoard{status: make(map[int]string)}
}

func (b *statusBoard) Started(workerID, taskID, duration int) {
	b.status[workerID] = fmt.Sprintf("processing task %d (duration %d)", taskID, duration)
}

func (b *statusBoard) Finished(workerID, taskID int) {
	b.status[workerID] = fmt.Sprintf("finished task %d", taskID)
}

func (b *statusBoard) Failed(workerID, taskID int, err error) {
	b.status[workerID] = fmt.Sprintf("failed task %d", taskID)
}

func (b *statusBoard) Shutdown(workerID, idle int) {
	b.status[workerID] = fmt.Sprintf("shut down (idle %d)", idle)
}

func (b *statusBoard) AllDone() {
	b.done = true
}

// Write prints one line per worker in id order
func (b *statusBoard) Write(w io.Writer) {
	ids := make([]int, 0, len(b.status))
	for id := range b.status {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "Worker %d: %s\n", id, b.status[id])
	}
	if b.done {
		fmt.Fprintln(w, "All tasks processed")
	}
}
