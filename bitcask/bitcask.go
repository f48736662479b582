package bitcask

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"sproutDB/logger"
	"sproutDB/storage"
	"sproutDB/util"
)

// entry header: key length uint32, value length int32 where -1 marks a tombstone
const headerLen = 8

// position and length of a live value inside the log file
type ValueOffset struct {
	Pos uint64
	Len uint32
}

// one keydir element, key -> (value pos, value len)
type ByteItem struct {
	Key   []byte
	Value *ValueOffset
}

func (bi *ByteItem) Less(than btree.Item) bool {
	other := than.(*ByteItem)
	return bytes.Compare(bi.Key, other.Key) < 0
}

// append-only log file, exclusively locked while open
type Log struct {
	Path string
	File *os.File
}

func NewLog(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "failed to create directory")
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open/create file")
	}

	if err = LockFileNonBlocking(file); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "get lockfile err")
	}

	return &Log{
		Path: path,
		File: file,
	}, nil
}

// buildKeyDir scans the log and rebuilds the keydir. A torn entry at the tail
// is truncated away; any other read error is returned.
func (log *Log) buildKeyDir() (*btree.BTree, error) {
	keyDir := btree.New(2)
	file := log.File

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, err
	}
	fileLen := fileInfo.Size()

	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	header := make([]byte, headerLen)
	pos := int64(0)
	for pos < fileLen {
		if _, err = io.ReadFull(file, header); err != nil {
			return keyDir, log.truncateTail(pos, err)
		}
		var keyLen uint32
		var valueLenOrTombstone int32
		if err = util.ByteToInt(header[:4], &keyLen); err != nil {
			return nil, err
		}
		if err = util.ByteToInt(header[4:], &valueLenOrTombstone); err != nil {
			return nil, err
		}

		key := make([]byte, keyLen)
		if _, err = io.ReadFull(file, key); err != nil {
			return keyDir, log.truncateTail(pos, err)
		}
		valuePos := pos + headerLen + int64(keyLen)

		if valueLenOrTombstone < 0 {
			keyDir.Delete(&ByteItem{Key: key})
			pos = valuePos
			continue
		}
		if valuePos+int64(valueLenOrTombstone) > fileLen {
			return keyDir, log.truncateTail(pos, io.ErrUnexpectedEOF)
		}
		if _, err = file.Seek(int64(valueLenOrTombstone), io.SeekCurrent); err != nil {
			return nil, err
		}
		keyDir.ReplaceOrInsert(&ByteItem{
			Key:   key,
			Value: &ValueOffset{Pos: uint64(valuePos), Len: uint32(valueLenOrTombstone)},
		})
		pos = valuePos + int64(valueLenOrTombstone)
	}

	return keyDir, nil
}

func (log *Log) truncateTail(pos int64, cause error) error {
	if cause != io.EOF && cause != io.ErrUnexpectedEOF {
		return cause
	}
	logger.Warnf("bitcask: truncating incomplete entry at %d in %s", pos, log.Path)
	return log.File.Truncate(pos)
}

func (log *Log) ReadValue(valuePos uint64, valueLen uint32) ([]byte, error) {
	buffer := make([]byte, valueLen)
	_, err := log.File.ReadAt(buffer, int64(valuePos))
	return buffer, err
}

// writeEntry appends key -> value; a nil value writes a tombstone.
// It returns the entry position and total entry length.
func (log *Log) writeEntry(key, value []byte) (uint64, uint32, error) {
	keyLen := uint32(len(key))
	valueLen := uint32(len(value))
	valueLenOrTombstone := int32(-1)
	if value != nil {
		valueLenOrTombstone = int32(len(value))
	}

	pos, err := log.File.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, err
	}
	entry := util.BufferAppend(util.BinaryToByte(keyLen), util.BinaryToByte(valueLenOrTombstone), key, value)
	if _, err = log.File.Write(entry); err != nil {
		return 0, 0, err
	}
	if err = log.File.Sync(); err != nil {
		return 0, 0, err
	}
	return uint64(pos), headerLen + keyLen + valueLen, nil
}

// BitCask writes key/value pairs to an append-only log and keeps
// key -> (value pos, value len) in memory. Deletes append a tombstone.
type BitCask struct {
	mu     sync.RWMutex
	Log    *Log
	KeyDir *btree.BTree
}

var _ storage.Engine = (*BitCask)(nil)

// OpenCompact opens the log and compacts it when the garbage ratio reaches threshold.
func OpenCompact(path string, garbageRatioThreshold float64) (*BitCask, error) {
	bitCask, err := Open(path)
	if err != nil {
		return nil, err
	}
	status, err := bitCask.Status()
	if err != nil {
		bitCask.Close()
		return nil, err
	}
	if status.GarbageDiskSize > 0 && status.TotalDiskSize > 0 {
		ratio := float64(status.GarbageDiskSize) / float64(status.TotalDiskSize)
		if ratio >= garbageRatioThreshold {
			logger.Infof("bitcask: compacting %s, garbage ratio %.2f", path, ratio)
			if err := bitCask.Compact(); err != nil {
				bitCask.Close()
				return nil, errors.Wrap(err, "compact")
			}
		}
	}
	return bitCask, nil
}

func Open(path string) (*BitCask, error) {
	log, err := NewLog(path)
	if err != nil {
		return nil, err
	}

	keyDir, err := log.buildKeyDir()
	if err != nil {
		log.File.Close()
		return nil, errors.Wrapf(err, "build keydir for %s", path)
	}
	return &BitCask{
		Log:    log,
		KeyDir: keyDir,
	}, nil
}

// Compact rewrites the log with live entries only.
func (bitCask *BitCask) Compact() error {
	bitCask.mu.Lock()
	defer bitCask.mu.Unlock()

	type live struct {
		key   []byte
		value []byte
	}
	items := make([]live, 0, bitCask.KeyDir.Len())

	var readErr error
	bitCask.KeyDir.Ascend(func(i btree.Item) bool {
		item := i.(*ByteItem)
		value, err := bitCask.Log.ReadValue(item.Value.Pos, item.Value.Len)
		if err != nil {
			readErr = err
			return false
		}
		items = append(items, live{key: item.Key, value: value})
		return true
	})
	if readErr != nil {
		return readErr
	}

	if err := bitCask.Log.File.Truncate(0); err != nil {
		return err
	}

	for _, item := range items {
		pos, itemLen, err := bitCask.Log.writeEntry(item.key, item.value)
		if err != nil {
			return err
		}
		bitCask.KeyDir.ReplaceOrInsert(&ByteItem{
			Key: item.key,
			Value: &ValueOffset{
				Pos: pos + uint64(itemLen) - uint64(len(item.value)),
				Len: uint32(len(item.value)),
			},
		})
	}
	return nil
}

func (bitCask *BitCask) Set(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	bitCask.mu.Lock()
	defer bitCask.mu.Unlock()

	pos, itemLen, err := bitCask.Log.writeEntry(key, value)
	if err != nil {
		return err
	}
	valueLen := uint32(len(value))
	bitCask.KeyDir.ReplaceOrInsert(&ByteItem{
		Key: append([]byte{}, key...),
		Value: &ValueOffset{
			Pos: pos + uint64(itemLen) - uint64(valueLen),
			Len: valueLen,
		},
	})
	return nil
}

func (bitCask *BitCask) Get(key []byte) ([]byte, error) {
	bitCask.mu.RLock()
	defer bitCask.mu.RUnlock()

	item := bitCask.KeyDir.Get(&ByteItem{Key: key})
	if item == nil {
		return nil, nil
	}
	byteItem := item.(*ByteItem)
	return bitCask.Log.ReadValue(byteItem.Value.Pos, byteItem.Value.Len)
}

func (bitCask *BitCask) Delete(key []byte) error {
	bitCask.mu.Lock()
	defer bitCask.mu.Unlock()

	if bitCask.KeyDir.Get(&ByteItem{Key: key}) == nil {
		return nil
	}
	if _, _, err := bitCask.Log.writeEntry(key, nil); err != nil {
		return err
	}
	bitCask.KeyDir.Delete(&ByteItem{Key: key})
	return nil
}

func (bitCask *BitCask) Scan(from, to []byte) ([]*storage.ByteMap, error) {
	bitCask.mu.RLock()
	defer bitCask.mu.RUnlock()

	byteMapList := []*storage.ByteMap{}
	var readErr error
	iter := func(i btree.Item) bool {
		item := i.(*ByteItem)
		value, err := bitCask.Log.ReadValue(item.Value.Pos, item.Value.Len)
		if err != nil {
			readErr = err
			return false
		}
		byteMapList = append(byteMapList, &storage.ByteMap{Key: item.Key, Value: value})
		return true
	}
	if to == nil {
		bitCask.KeyDir.AscendGreaterOrEqual(&ByteItem{Key: from}, iter)
	} else {
		bitCask.KeyDir.AscendRange(&ByteItem{Key: from}, &ByteItem{Key: to}, iter)
	}
	return byteMapList, readErr
}

func (bitCask *BitCask) ScanPrefix(prefix []byte) ([]*storage.ByteMap, error) {
	return bitCask.Scan(prefix, util.PrefixEnd(prefix))
}

func (bitCask *BitCask) Status() (*storage.Status, error) {
	bitCask.mu.RLock()
	defer bitCask.mu.RUnlock()

	keys := uint64(bitCask.KeyDir.Len())
	size := uint64(0)
	bitCask.KeyDir.Ascend(func(i btree.Item) bool {
		item := i.(*ByteItem)
		size += uint64(len(item.Key)) + uint64(item.Value.Len)
		return true
	})
	stat, err := bitCask.Log.File.Stat()
	if err != nil {
		return nil, err
	}
	totalDiskSize := uint64(stat.Size())
	liveDiskSize := size + headerLen*keys
	garbageDiskSize := uint64(0)
	if totalDiskSize > liveDiskSize {
		garbageDiskSize = totalDiskSize - liveDiskSize
	}
	return &storage.Status{
		Name:            "bitcask",
		Keys:            keys,
		Size:            size,
		TotalDiskSize:   totalDiskSize,
		GarbageDiskSize: garbageDiskSize,
		LiveDiskSize:    liveDiskSize,
		FileName:        bitCask.FileName(),
	}, nil
}

func (bitCask *BitCask) Flush() error {
	return bitCask.Log.File.Sync()
}

func (bitCask *BitCask) Close() error {
	bitCask.mu.Lock()
	defer bitCask.mu.Unlock()
	if err := bitCask.Log.File.Sync(); err != nil {
		return err
	}
	return bitCask.Log.File.Close()
}

func (bitCask *BitCask) FileName() string {
	path, _ := filepath.Abs(bitCask.Log.File.Name())
	return path
}
