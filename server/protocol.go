package server

import (
	"sproutDB/sql/plan"
	"sproutDB/sql/session"
	"sproutDB/storage"
)

// Every frame is [ClientPrefix, kind] followed by a length prefixed gob payload.
// Commit and rollback requests carry an empty payload.
const (
	ClientPrefix     = 0x08
	ExecutePrefix    = 0x02
	GetTablePrefix   = 0x03
	ListTablesPrefix = 0x04
	StatusPrefix     = 0x05
	RespErrPrefix    = 0x06
	BeginPrefix      = 0x07
	CommitPrefix     = 0x09
	RollbackPrefix   = 0x0a
)

type Request interface {
	requestType()
}

type Response interface {
	responseType()
}

type Execute struct {
	Plan *plan.CreatePlan
}

func (*Execute) requestType() {}

type Begin struct {
	ReadOnly bool
}

func (*Begin) requestType() {}

type Commit struct{}

func (*Commit) requestType() {}

type Rollback struct{}

func (*Rollback) requestType() {}

type GetTable struct {
	Database string
	Table    string
}

func (*GetTable) requestType() {}

type ListTables struct {
	Database string
	Data     []string
}

func (*ListTables) requestType()  {}
func (*ListTables) responseType() {}

type Status struct {
	Data *StatusInfo
}

func (*Status) requestType()  {}
func (*Status) responseType() {}

type StatusInfo struct {
	MVCC      *storage.MVCCStatus
	Databases []string
	Sessions  int
}

type RespError struct {
	Errmsg string
}

func (*RespError) responseType() {}

func (e *RespError) Error() string {
	return e.Errmsg
}

type ExecuteResp struct {
	Data *session.Result
}

func (*ExecuteResp) responseType() {}

type GetTableResp struct {
	Data *session.TableInfo
}

func (*GetTableResp) responseType() {}

// RequestPrefix returns the frame kind of a request.
func RequestPrefix(request Request) byte {
	switch request.(type) {
	case *Execute:
		return ExecutePrefix
	case *Begin:
		return BeginPrefix
	case *Commit:
		return CommitPrefix
	case *Rollback:
		return RollbackPrefix
	case *GetTable:
		return GetTablePrefix
	case *ListTables:
		return ListTablesPrefix
	case *Status:
		return StatusPrefix
	}
	return 0
}

// ResponsePrefix returns the frame kind of a response. Begin, commit and
// rollback answer with an ExecuteResp.
func ResponsePrefix(response Response) byte {
	switch response.(type) {
	case *ExecuteResp:
		return ExecutePrefix
	case *GetTableResp:
		return GetTablePrefix
	case *ListTables:
		return ListTablesPrefix
	case *Status:
		return StatusPrefix
	case *RespError:
		return RespErrPrefix
	}
	return 0
}
