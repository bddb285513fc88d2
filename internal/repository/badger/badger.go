// Package badger implements the job repository on an embedded BadgerDB.
package badger

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	jobRecordPrefix = "job:"
	jobIDPrefix     = "jobid:"
	jobSeq          = "jobseq"

	defaultSequenceBandwidth = 100
)

// DB wraps a BadgerDB instance
type DB struct {
	db     *badger.DB
	logger *zap.Logger
}

// zapAdapter routes badger's internal logging to zap.
type zapAdapter struct {
	s *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, args ...any)   { a.s.Errorf(msg, args...) }
func (a *zapAdapter) Warningf(msg string, args ...any) { a.s.Warnf(msg, args...) }
func (a *zapAdapter) Infof(msg string, args ...any)    { a.s.Debugf(msg, args...) }
func (a *zapAdapter) Debugf(msg string, args ...any)   { a.s.Debugf(msg, args...) }

// Open opens a BadgerDB database at path, or an in-memory one when inMemory is set.
func Open(path string, inMemory bool, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &zapAdapter{s: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &DB{db: db, logger: logger}, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// recordKey orders records by insertion sequence.
func recordKey(seq uint64) []byte {
	buf := make([]byte, len(jobRecordPrefix)+8)
	n := copy(buf, jobRecordPrefix)
	binary.BigEndian.PutUint64(buf[n:], seq)
	return buf
}

func idKey(id uuid.UUID) []byte {
	return append([]byte(jobIDPrefix), id[:]...)
}
