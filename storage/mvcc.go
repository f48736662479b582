package storage

import (
	"bytes"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"sproutDB/logger"
	"sproutDB/util"
)

var (
	ErrSerialization = errors.New("serialization failure, retry transaction")
	ErrReadOnly      = errors.New("cannot write in a read-only transaction")
	ErrTxnFinished   = errors.New("transaction already finished")
)

// stored value markers, a tombstone hides older versions
const (
	valueTombstone byte = 0x00
	valueLive      byte = 0x01
)

// MVCC provides snapshot isolation on top of a plain Engine. All engine
// access goes through one mutex so conflict checks and writes are atomic.
type MVCC struct {
	Engine Engine
	Mu     *sync.Mutex
}

type MVCCStatus struct {
	Version    uint64
	ActiveTxns uint64
	Storage    *Status
}

func NewMVCC(engine Engine) *MVCC {
	return &MVCC{
		Engine: engine,
		Mu:     &sync.Mutex{},
	}
}

func (mvcc *MVCC) Status() (*MVCCStatus, error) {
	mvcc.Mu.Lock()
	defer mvcc.Mu.Unlock()

	version, err := mvcc.nextVersion()
	if err != nil {
		return nil, err
	}
	active, err := mvcc.scanActive()
	if err != nil {
		return nil, err
	}
	status, err := mvcc.Engine.Status()
	if err != nil {
		return nil, err
	}
	return &MVCCStatus{
		// last allocated version
		Version:    uint64(version) - 1,
		ActiveTxns: uint64(len(active)),
		Storage:    status,
	}, nil
}

func (mvcc *MVCC) nextVersion() (Version, error) {
	nextVersion := NextVersion{}
	versionByte, err := mvcc.Engine.Get(nextVersion.MVCCEncode())
	if err != nil {
		return 0, err
	}
	if len(versionByte) == 0 {
		return 1, nil
	}
	var value uint64
	if err := util.ByteToInt(versionByte, &value); err != nil {
		return 0, errors.Wrap(err, "decode next version")
	}
	return Version(value), nil
}

func (mvcc *MVCC) scanActive() (VersionHashSet, error) {
	active := VersionHashSet{}
	txnActive := TxnActive{}
	// prefix without the version suffix
	items, err := mvcc.Engine.ScanPrefix(txnActive.MVCCEncode()[:2])
	if err != nil {
		return nil, err
	}
	for _, v := range items {
		key, err := DecodeKey(v.Key)
		if err != nil {
			return nil, err
		}
		if a, ok := key.(*TxnActive); ok {
			active[a.Version] = struct{}{}
		}
	}
	return active, nil
}

// RollbackStale rolls back the transactions a previous process left active.
// It must run before any transaction of this process begins.
func (mvcc *MVCC) RollbackStale() (int, error) {
	mvcc.Mu.Lock()
	active, err := mvcc.scanActive()
	mvcc.Mu.Unlock()
	if err != nil {
		return 0, err
	}
	for version := range active {
		stale := &MVCCTransaction{
			mvcc: mvcc,
			St:   &TransactionState{Version: version, Active: VersionHashSet{}},
		}
		if err := stale.Rollback(); err != nil {
			return 0, errors.Wrapf(err, "roll back stale version %d", version)
		}
	}
	return len(active), nil
}

// Begin starts a read-write transaction at a fresh version.
func (mvcc *MVCC) Begin() (*MVCCTransaction, error) {
	mvcc.Mu.Lock()
	defer mvcc.Mu.Unlock()

	version, err := mvcc.nextVersion()
	if err != nil {
		return nil, err
	}
	nextVersion := NextVersion{}
	if err := mvcc.Engine.Set(nextVersion.MVCCEncode(), util.BinaryToByte(uint64(version+1))); err != nil {
		return nil, err
	}

	active, err := mvcc.scanActive()
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		snapshot, err := util.GobEncode(&active)
		if err != nil {
			return nil, err
		}
		txnActiveSnap := TxnActiveSnapshot{Version: version}
		if err := mvcc.Engine.Set(txnActiveSnap.MVCCEncode(), snapshot); err != nil {
			return nil, err
		}
	}
	txnActive := TxnActive{Version: version}
	if err := mvcc.Engine.Set(txnActive.MVCCEncode(), []byte{'1'}); err != nil {
		return nil, err
	}

	return &MVCCTransaction{
		mvcc: mvcc,
		St: &TransactionState{
			Version:  version,
			ReadOnly: false,
			Active:   active,
		},
	}, nil
}

// BeginReadOnly starts a snapshot read of everything committed so far.
func (mvcc *MVCC) BeginReadOnly() (*MVCCTransaction, error) {
	return mvcc.BeginAsOf(0)
}

// BeginAsOf starts a read-only transaction seeing the data as of version.
// A zero version means the latest.
func (mvcc *MVCC) BeginAsOf(asOf Version) (*MVCCTransaction, error) {
	mvcc.Mu.Lock()
	defer mvcc.Mu.Unlock()

	version, err := mvcc.nextVersion()
	if err != nil {
		return nil, err
	}

	active := VersionHashSet{}
	if asOf != 0 {
		if asOf >= version {
			return nil, errors.Errorf("version %d does not exist", asOf)
		}
		version = asOf
		txnActiveSnap := TxnActiveSnapshot{Version: version}
		snapshot, err := mvcc.Engine.Get(txnActiveSnap.MVCCEncode())
		if err != nil {
			return nil, err
		}
		if len(snapshot) > 0 {
			if err := util.GobDecode(snapshot, &active); err != nil {
				return nil, err
			}
		}
	} else {
		active, err = mvcc.scanActive()
		if err != nil {
			return nil, err
		}
	}

	return &MVCCTransaction{
		mvcc: mvcc,
		St: &TransactionState{
			Version:  version,
			ReadOnly: true,
			Active:   active,
		},
	}, nil
}

type MVCCTransaction struct {
	mvcc     *MVCC
	St       *TransactionState
	finished bool
}

func (txn *MVCCTransaction) Version() Version {
	return txn.St.Version
}

func (txn *MVCCTransaction) ReadOnly() bool {
	return txn.St.ReadOnly
}

func (txn *MVCCTransaction) Set(key []byte, value []byte) error {
	return txn.write(key, append([]byte{valueLive}, value...))
}

func (txn *MVCCTransaction) Delete(key []byte) error {
	return txn.write(key, []byte{valueTombstone})
}

func (txn *MVCCTransaction) write(key []byte, value []byte) error {
	if txn.St.ReadOnly {
		return ErrReadOnly
	}
	txn.mvcc.Mu.Lock()
	defer txn.mvcc.Mu.Unlock()
	if txn.finished {
		return ErrTxnFinished
	}

	// any version newer than the oldest one we cannot see must be visible, otherwise
	// another transaction wrote this key concurrently
	from := txn.St.Version + 1
	for active := range txn.St.Active {
		if active < from {
			from = active
		}
	}
	versions, err := txn.mvcc.Engine.Scan((&Versioned{Key: key, Version: from}).MVCCEncode(), versionsEnd(key))
	if err != nil {
		return err
	}
	for _, item := range versions {
		decoded, err := DecodeKey(item.Key)
		if err != nil {
			return err
		}
		if v, ok := decoded.(*Versioned); ok && !txn.St.IsVisible(v.Version) {
			return ErrSerialization
		}
	}

	txnWrite := &TxnWrite{Version: txn.St.Version, Key: key}
	if err := txn.mvcc.Engine.Set(txnWrite.MVCCEncode(), []byte{'1'}); err != nil {
		return err
	}
	versioned := &Versioned{Key: key, Version: txn.St.Version}
	return txn.mvcc.Engine.Set(versioned.MVCCEncode(), value)
}

// Get returns the newest visible value of key, or nil.
func (txn *MVCCTransaction) Get(key []byte) ([]byte, error) {
	txn.mvcc.Mu.Lock()
	defer txn.mvcc.Mu.Unlock()

	from := (&Versioned{Key: key, Version: 0}).MVCCEncode()
	to := (&Versioned{Key: key, Version: txn.St.Version + 1}).MVCCEncode()
	items, err := txn.mvcc.Engine.Scan(from, to)
	if err != nil {
		return nil, err
	}
	for i := len(items) - 1; i >= 0; i-- {
		decoded, err := DecodeKey(items[i].Key)
		if err != nil {
			return nil, err
		}
		v, ok := decoded.(*Versioned)
		if !ok || !bytes.Equal(v.Key, key) || !txn.St.IsVisible(v.Version) {
			continue
		}
		return liveValue(items[i].Value), nil
	}
	return nil, nil
}

// ScanPrefix returns the newest visible value of every live key starting with prefix, in key order.
func (txn *MVCCTransaction) ScanPrefix(prefix []byte) ([]*ByteMap, error) {
	txn.mvcc.Mu.Lock()
	defer txn.mvcc.Mu.Unlock()

	items, err := txn.mvcc.Engine.ScanPrefix(versionedPrefix(prefix))
	if err != nil {
		return nil, err
	}

	latest := map[string]*ByteMap{}
	latestVersion := map[string]Version{}
	for _, item := range items {
		decoded, err := DecodeKey(item.Key)
		if err != nil {
			return nil, err
		}
		v, ok := decoded.(*Versioned)
		if !ok || !txn.St.IsVisible(v.Version) {
			continue
		}
		k := string(v.Key)
		if seen, ok := latestVersion[k]; ok && seen > v.Version {
			continue
		}
		latestVersion[k] = v.Version
		latest[k] = &ByteMap{Key: v.Key, Value: item.Value}
	}

	result := make([]*ByteMap, 0, len(latest))
	for _, item := range latest {
		if value := liveValue(item.Value); value != nil {
			result = append(result, &ByteMap{Key: item.Key, Value: value})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Key, result[j].Key) < 0
	})
	return result, nil
}

func liveValue(stored []byte) []byte {
	if len(stored) == 0 || stored[0] == valueTombstone {
		return nil
	}
	return stored[1:]
}

func (txn *MVCCTransaction) txnWrites() ([]*ByteMap, error) {
	from := (&TxnWrite{Version: txn.St.Version}).MVCCEncode()
	to := (&TxnWrite{Version: txn.St.Version + 1}).MVCCEncode()
	return txn.mvcc.Engine.Scan(from, to)
}

func (txn *MVCCTransaction) Commit() error {
	if txn.St.ReadOnly {
		return nil
	}
	txn.mvcc.Mu.Lock()
	defer txn.mvcc.Mu.Unlock()
	if txn.finished {
		return ErrTxnFinished
	}

	writes, err := txn.txnWrites()
	if err != nil {
		return err
	}
	for _, v := range writes {
		if err := txn.mvcc.Engine.Delete(v.Key); err != nil {
			return err
		}
	}
	txnActive := TxnActive{Version: txn.St.Version}
	if err := txn.mvcc.Engine.Delete(txnActive.MVCCEncode()); err != nil {
		return err
	}
	txn.finished = true
	return txn.mvcc.Engine.Flush()
}

func (txn *MVCCTransaction) Rollback() error {
	if txn.St.ReadOnly {
		return nil
	}
	txn.mvcc.Mu.Lock()
	defer txn.mvcc.Mu.Unlock()
	if txn.finished {
		return ErrTxnFinished
	}

	writes, err := txn.txnWrites()
	if err != nil {
		return err
	}
	for _, v := range writes {
		decoded, err := DecodeKey(v.Key)
		if err != nil {
			return err
		}
		txnWrite, ok := decoded.(*TxnWrite)
		if !ok {
			return errBadKey
		}
		versioned := &Versioned{Key: txnWrite.Key, Version: txn.St.Version}
		if err := txn.mvcc.Engine.Delete(versioned.MVCCEncode()); err != nil {
			return err
		}
		if err := txn.mvcc.Engine.Delete(v.Key); err != nil {
			return err
		}
	}

	txnActive := TxnActive{Version: txn.St.Version}
	if err := txn.mvcc.Engine.Delete(txnActive.MVCCEncode()); err != nil {
		return err
	}
	txn.finished = true
	logger.Debugf("mvcc: rolled back version %d, %d writes", txn.St.Version, len(writes))
	return nil
}
