package store

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// EventListener keeps a view of pebble's background work so operators can see stalls and
// compactions next to the coordinator's own status.
type EventListener struct {
	PebbleListener pebble.EventListener
	compactionInfo *PebbleCompactionInfo
	logger         *zap.SugaredLogger
	mutex          sync.RWMutex
}

func NewEventListener(logger *zap.Logger) *EventListener {
	el := EventListener{logger: logger.Sugar().Named("pebble")}

	listener := pebble.EventListener{}
	listener.BackgroundError = el.backgroundError
	listener.CompactionBegin = el.compactionBegin
	listener.CompactionEnd = el.compactionEnd
	listener.FlushBegin = el.flushBegin
	listener.FlushEnd = el.flushEnd
	listener.WriteStallBegin = el.writeStallBegin
	listener.WriteStallEnd = el.writeStallEnd

	el.PebbleListener = listener
	el.compactionInfo = &PebbleCompactionInfo{
		WritesStalled: false,
		Errors:        make([]PebbleErrorWithTimeStamp, 0),
		Compactions:   make(map[int]*PebbleCompaction),
		Flushes:       make(map[int]*PebbleFlush),
	}

	return &el
}

func now() string {
	return time.Now().UTC().Format(time.RFC822)
}

func (el *EventListener) backgroundError(err error) {
	el.logger.Errorw("background error", "error", err)

	el.mutex.Lock()
	defer el.mutex.Unlock()

	el.compactionInfo.Errors = append(el.compactionInfo.Errors, PebbleErrorWithTimeStamp{
		Err:       err.Error(),
		Timestamp: now(),
	})
}

func (el *EventListener) compactionBegin(info pebble.CompactionInfo) {
	var fromLevels []PebbleLevel
	for _, level := range info.Input {
		fromLevels = append(fromLevels, PebbleLevel{
			Level:       level.Level,
			Description: level.String(),
		})
	}
	el.logger.Debugw("compaction triggered", "jobID", info.JobID, "reason", info.Reason, "toLevel", info.Output.Level)

	el.mutex.Lock()
	defer el.mutex.Unlock()

	el.compactionInfo.Compactions[info.JobID] = &PebbleCompaction{
		PebbleDiskOperation: PebbleDiskOperation{
			Reason:    info.Reason,
			StartedAt: now(),
		},
		From: fromLevels,
		To: PebbleLevel{
			Level:       info.Output.Level,
			Description: info.Output.String(),
		},
	}
}

func (el *EventListener) compactionEnd(info pebble.CompactionInfo) {
	el.logger.Debugw("compaction ended", "jobID", info.JobID, "took", info.TotalDuration)

	el.mutex.Lock()
	defer el.mutex.Unlock()

	compaction, ok := el.compactionInfo.Compactions[info.JobID]
	if !ok {
		return
	}
	compaction.Finished = true
	compaction.EndedAt = now()
	compaction.Duration = info.TotalDuration.String()
}

func (el *EventListener) flushBegin(info pebble.FlushInfo) {
	el.logger.Debugw("flush triggered", "jobID", info.JobID, "reason", info.Reason)

	el.mutex.Lock()
	defer el.mutex.Unlock()

	el.compactionInfo.Flushes[info.JobID] = &PebbleFlush{
		PebbleDiskOperation{
			Reason:    info.Reason,
			StartedAt: now(),
		},
	}
}

func (el *EventListener) flushEnd(info pebble.FlushInfo) {
	el.logger.Debugw("flush ended", "jobID", info.JobID, "took", info.TotalDuration)

	el.mutex.Lock()
	defer el.mutex.Unlock()

	flush, ok := el.compactionInfo.Flushes[info.JobID]
	if !ok {
		return
	}
	flush.Finished = true
	flush.EndedAt = now()
	flush.Duration = info.TotalDuration.String()
}

func (el *EventListener) writeStallBegin(info pebble.WriteStallBeginInfo) {
	el.logger.Warnw("writes stalled", "reason", info.Reason)

	el.mutex.Lock()
	defer el.mutex.Unlock()

	el.compactionInfo.WritesStalled = true
}

func (el *EventListener) writeStallEnd() {
	el.logger.Infow("writes resumed")

	el.mutex.Lock()
	defer el.mutex.Unlock()

	el.compactionInfo.WritesStalled = false
}

type PebbleErrorWithTimeStamp struct {
	Err       string `json:"err"`
	Timestamp string `json:"timestamp"`
}

type PebbleLevel struct {
	Level       int    `json:"level"`
	Description string `json:"description"`
}

type PebbleDiskOperation struct {
	Reason    string `json:"reason"`
	Finished  bool   `json:"finished"`
	StartedAt string `json:"startedAt"`
	EndedAt   string `json:"endedAt"`
	Duration  string `json:"duration"`
}

type PebbleCompaction struct {
	PebbleDiskOperation
	From []PebbleLevel `json:"from"`
	To   PebbleLevel   `json:"to"`
}

type PebbleFlush struct {
	PebbleDiskOperation
}

type PebbleCompactionInfo struct {
	WritesStalled bool                       `json:"writesStalled"`
	Errors        []PebbleErrorWithTimeStamp `json:"errors"`
	Compactions   map[int]*PebbleCompaction  `json:"compactions"`
	Flushes       map[int]*PebbleFlush       `json:"flushes"`
}

func (el *EventListener) WritesStalled() bool {
	el.mutex.RLock()
	defer el.mutex.RUnlock()

	return el.compactionInfo.WritesStalled
}

func (el *EventListener) HandleCompactionInfoEndpoint(w http.ResponseWriter, _ *http.Request) {
	el.mutex.RLock()
	data, err := json.Marshal(el.compactionInfo)
	el.mutex.RUnlock()

	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	if err != nil {
		el.logger.Warnw("failed to write compaction info", "error", err)
	}
}
