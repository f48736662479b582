package storage

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"sproutDB/util"
)

var ErrClosed = errors.New("storage engine closed")

// a raw key/value pair returned by scans
type ByteMap struct {
	Key   []byte
	Value []byte
}

type Status struct {
	Name            string
	Keys            uint64
	Size            uint64
	TotalDiskSize   uint64
	LiveDiskSize    uint64
	GarbageDiskSize uint64
	FileName        string
}

// Engine is an ordered key/value store. Get returns a nil value for missing keys.
// Scan covers [from, to); a nil to means unbounded.
type Engine interface {
	Delete(key []byte) error
	Get(key []byte) ([]byte, error)
	Scan(from, to []byte) ([]*ByteMap, error)
	ScanPrefix(prefix []byte) ([]*ByteMap, error)
	Set(key, value []byte) error
	Status() (*Status, error)
	Flush() error
	Close() error
}

type memItem struct {
	key   []byte
	value []byte
}

func (m *memItem) Less(than btree.Item) bool {
	return bytes.Compare(m.key, than.(*memItem).key) < 0
}

// Memory is a btree backed Engine without durability.
type Memory struct {
	mu     sync.RWMutex
	tree   *btree.BTree
	closed bool
}

func NewMemory() *Memory {
	return &Memory{tree: btree.New(32)}
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	item := m.tree.Get(&memItem{key: key})
	if item == nil {
		return nil, nil
	}
	return cloneBytes(item.(*memItem).value), nil
}

func (m *Memory) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	v := cloneBytes(value)
	if v == nil {
		v = []byte{}
	}
	m.tree.ReplaceOrInsert(&memItem{key: cloneBytes(key), value: v})
	return nil
}

func (m *Memory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.tree.Delete(&memItem{key: key})
	return nil
}

func (m *Memory) Scan(from, to []byte) ([]*ByteMap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	result := []*ByteMap{}
	iter := func(i btree.Item) bool {
		item := i.(*memItem)
		result = append(result, &ByteMap{Key: cloneBytes(item.key), Value: cloneBytes(item.value)})
		return true
	}
	if to == nil {
		m.tree.AscendGreaterOrEqual(&memItem{key: from}, iter)
	} else {
		m.tree.AscendRange(&memItem{key: from}, &memItem{key: to}, iter)
	}
	return result, nil
}

func (m *Memory) ScanPrefix(prefix []byte) ([]*ByteMap, error) {
	return m.Scan(prefix, util.PrefixEnd(prefix))
}

func (m *Memory) Status() (*Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	size := uint64(0)
	m.tree.Ascend(func(i btree.Item) bool {
		item := i.(*memItem)
		size += uint64(len(item.key) + len(item.value))
		return true
	})
	return &Status{
		Name:         "memory",
		Keys:         uint64(m.tree.Len()),
		Size:         size,
		LiveDiskSize: 0,
	}, nil
}

func (m *Memory) Flush() error {
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
