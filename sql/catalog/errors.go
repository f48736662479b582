package catalog

import (
	"github.com/pkg/errors"

	"sproutDB/storage"
)

var (
	// name already taken by a committed object
	ErrCatalogConflict = errors.New("catalog object already exists")
	// referenced database, table or column absent
	ErrCatalogLookup = errors.New("catalog object not found")
	// creation otherwise rejected, e.g. an invalid schema
	ErrCatalogMutation = errors.New("catalog mutation rejected")
	// malformed request that a well behaved producer never sends
	ErrInvalidRequest = errors.New("invalid ddl request")
	// object is being created by another transaction that has not finished
	ErrSerialization = storage.ErrSerialization
)
