// Package journal keeps a write-ahead log of sync outcomes on local disk.
// The database holds only the latest state; the journal preserves the
// per-run history so operators can replay what happened to an account and
// when, even after DB rows were overwritten by later syncs.
package journal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/hodlsync/hodlsync/internal/entity"
)

const (
	defaultDir      = "./wal/syncs"
	segmentLimit    = 1000
	maxSegments     = 100
	recordKeyPrefix = "sync_result_"
)

// Record is one journaled sync outcome with its WAL position.
type Record struct {
	Index      uint64            `json:"index"`
	Result     entity.SyncResult `json:"result"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Journal is a WAL-backed, append-only log of SyncResults.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// New opens (or creates) the journal under dir.
func New(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "sync_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init sync journal WAL")
	}
	return &Journal{wal: wal}, nil
}

// Append journals one sync result. A nil Journal silently drops the write,
// so callers that run without a journal need no branching.
func (j *Journal) Append(result entity.SyncResult, finishedAt time.Time) error {
	if j == nil || j.wal == nil {
		return nil
	}

	payload, err := json.Marshal(Record{Result: result, FinishedAt: finishedAt})
	if err != nil {
		return errors.Wrap(err, "marshal sync result")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	next := j.wal.CurrentIndex() + 1
	return errors.Wrap(
		j.wal.Write(next, recordKeyPrefix+result.AccountID.String(), payload),
		"journal sync result")
}

// ResultsAfter returns every journaled result with index > after, oldest
// first.
func (j *Journal) ResultsAfter(after uint64) ([]Record, error) {
	if j == nil || j.wal == nil {
		return nil, nil
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= after {
		return nil, nil
	}

	records := make([]Record, 0, current-after)
	for idx := after + 1; idx <= current; idx++ {
		_, payload, err := j.wal.Get(idx)
		if err != nil || len(payload) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode journaled sync result")
		}
		record.Index = idx
		records = append(records, record)
	}
	return records, nil
}

// CurrentIndex returns the index of the newest journaled record.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.wal.CurrentIndex()
}

// Close flushes and closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}
