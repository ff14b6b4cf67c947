package observer

import "github.com/jzx17/procsim/internal/logger"

// LogObserver writes every event as a structured log line
type LogObserver struct {
	log *logger.Logger
}

var _ Observer = (*LogObserver)(nil)

// NewLogObserver creates a log sink; a nil logger discards everything
func NewLogObserver(log *logger.Logger) *LogObserver {
	if log == nil {
		log = logger.Nop()
	}
	return &LogObserver{log: log}
}

func (o *LogObserver) Started(workerID, taskID, duration int) {
	o.log.Info("task started",
		logger.F("worker_id", workerID),
		logger.F("task_id", taskID),
		logger.F("duration", duration))
}

func (o *LogObserver) Finished(workerID, taskID int) {
	o.log.Info("task finished",
		logger.F("worker_id", workerID),
		logger.F("task_id", taskID))
}

func (o *LogObserver) Failed(workerID, taskID int, err error) {
	o.log.Error("task failed", err,
		logger.F("worker_id", workerID),
		logger.F("task_id", taskID))
}

func (o *LogObserver) DurationReported(workerIndex, duration int) {
	o.log.Debug("duration reported",
		logger.F("worker_index", workerIndex),
		logger.F("duration", duration))
}

func (o *LogObserver) Shutdown(workerID, idle int) {
	o.log.Info("worker shut down",
		logger.F("worker_id", workerID),
		logger.F("idle", idle))
}

func (o *LogObserver) AllDone() {
	o.log.Info("all tasks processed")
}
