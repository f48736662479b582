package catalog

import (
	"strings"

	"github.com/pkg/errors"
)

type IndexType uint8

const (
	IndexBWTree IndexType = iota
	IndexBTree
	IndexHash
	IndexSkipList
)

func (t IndexType) String() string {
	switch t {
	case IndexBWTree:
		return "BWTREE"
	case IndexBTree:
		return "BTREE"
	case IndexHash:
		return "HASH"
	case IndexSkipList:
		return "SKIPLIST"
	default:
		return "INVALID"
	}
}

func (t IndexType) Valid() bool {
	return t <= IndexSkipList
}

func ParseIndexType(s string) (IndexType, error) {
	switch strings.ToUpper(s) {
	case "", "BWTREE":
		return IndexBWTree, nil
	case "BTREE":
		return IndexBTree, nil
	case "HASH":
		return IndexHash, nil
	case "SKIPLIST":
		return IndexSkipList, nil
	}
	return IndexBWTree, errors.Errorf("unknown index type %s", s)
}

// Index is catalog metadata only; the physical structure lives elsewhere.
type Index struct {
	Name      string
	TableName string
	Columns   []string
	Unique    bool
	Type      IndexType
}

func (idx *Index) Copy() *Index {
	c := *idx
	c.Columns = append([]string(nil), idx.Columns...)
	return &c
}
