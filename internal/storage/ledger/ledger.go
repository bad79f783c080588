// Package ledger journals executed transactions and snapshots to a WAL so
// the web stream and crash recovery can replay them in order.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

const (
	defaultDir       = "./wal/ledger"
	segmentThreshold = 1000
	maxSegments      = 100

	txKeyPrefix       = "tx_"
	snapshotKeyPrefix = "snapshot_"
)

// Journal persists ledger entries append-only. Entries are never rewritten;
// the WAL index orders them globally across portfolios.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewJournal opens (or creates) the WAL under dir.
func NewJournal(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &Journal{wal: wal}, nil
}

// AppendTransaction journals one executed trade.
func (j *Journal) AppendTransaction(tx domain.Transaction) error {
	if j == nil || j.wal == nil {
		return errors.New("ledger journal is not initialized")
	}
	if tx.Portfolio == "" {
		return errors.New("transaction portfolio is required")
	}

	payload, err := json.Marshal(tx)
	if err != nil {
		return errors.Wrap(err, "marshal transaction")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	next := j.wal.CurrentIndex() + 1
	return j.wal.Write(next, fmt.Sprintf("%s%s", txKeyPrefix, tx.Portfolio), payload)
}

// AppendSnapshot journals one valuation snapshot.
func (j *Journal) AppendSnapshot(snapshot domain.PortfolioSnapshot) error {
	if j == nil || j.wal == nil {
		return errors.New("ledger journal is not initialized")
	}
	if snapshot.Portfolio == "" {
		return errors.New("snapshot portfolio is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	next := j.wal.CurrentIndex() + 1
	return j.wal.Write(next, fmt.Sprintf("%s%s", snapshotKeyPrefix, snapshot.Portfolio), payload)
}

// TransactionRecord bundles a journaled transaction with its WAL index.
type TransactionRecord struct {
	Index       uint64
	Transaction domain.Transaction
}

// TransactionsAfter returns all transactions journaled after index.
func (j *Journal) TransactionsAfter(index uint64) ([]TransactionRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("ledger journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	var records []TransactionRecord
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, txKeyPrefix) {
			continue
		}
		var tx domain.Transaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			return nil, errors.Wrap(err, "decode transaction")
		}
		records = append(records, TransactionRecord{Index: idx, Transaction: tx})
	}

	return records, nil
}

// SnapshotsAfter returns all snapshots journaled after index.
func (j *Journal) SnapshotsAfter(index uint64) ([]domain.SnapshotRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("ledger journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	var records []domain.SnapshotRecord
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		var snapshot domain.PortfolioSnapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode snapshot")
		}
		records = append(records, domain.SnapshotRecord{Index: idx, Snapshot: snapshot})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("ledger journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
