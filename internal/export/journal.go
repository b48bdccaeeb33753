package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
)

// JournalHeaders are the columns of the event journal.
func JournalHeaders() []string {
	return []string{"seq", "batch", "index", "type", "mint", "amount"}
}

// Journal appends committed events to a CSV file. It implements events.Sink.
// Records are buffered and flushed on a ticker and on Close.
type Journal struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	ticker   *time.Ticker
	done     chan struct{}
	logger   *zap.Logger
	filePath string

	// Stats
	writtenRecords uint64
	flushCount     uint64
}

var _ events.Sink = (*Journal)(nil)

// NewJournal opens filePath for appending, writing the header when the file
// is new.
func NewJournal(filePath string, flushInterval time.Duration, logger *zap.Logger) (*Journal, error) {
	if flushInterval <= 0 {
		return nil, fmt.Errorf("invalid flush interval %s", flushInterval)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	j := &Journal{
		writer:   csv.NewWriter(file),
		file:     file,
		ticker:   time.NewTicker(flushInterval),
		done:     make(chan struct{}),
		logger:   logger,
		filePath: filePath,
	}

	if stat.Size() == 0 {
		if err := j.writer.Write(JournalHeaders()); err != nil {
			j.ticker.Stop()
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		j.writer.Flush()
	}

	go j.periodicFlush()
	return j, nil
}

// Write buffers one record per envelope.
func (j *Journal) Write(_ context.Context, envs []events.Envelope) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, env := range envs {
		record := []string{
			strconv.FormatUint(env.Seq, 10),
			strconv.FormatUint(env.Batch, 10),
			strconv.Itoa(env.Index),
			string(env.Type()),
			env.Mint().String(),
			strconv.FormatUint(env.Amount(), 10),
		}
		if err := j.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		j.writtenRecords++
	}
	return nil
}

// Flush forces buffered records to disk.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	j.flushCount++
	return nil
}

func (j *Journal) periodicFlush() {
	for {
		select {
		case <-j.ticker.C:
			if err := j.Flush(); err != nil {
				j.logger.Error("Periodic journal flush failed",
					zap.String("file", j.filePath),
					zap.Error(err))
			}
		case <-j.done:
			return
		}
	}
}

// Close flushes and closes the file.
func (j *Journal) Close() error {
	close(j.done)
	j.ticker.Stop()

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.flushLocked(); err != nil {
		j.file.Close()
		return err
	}
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	j.logger.Info("Event journal closed",
		zap.String("file", j.filePath),
		zap.Uint64("records", j.writtenRecords),
		zap.Uint64("flushes", j.flushCount))
	return nil
}

// Stats returns the number of records written and flushes performed.
func (j *Journal) Stats() (records, flushes uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writtenRecords, j.flushCount
}
