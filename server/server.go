package server

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"sproutDB/logger"
	"sproutDB/sql/catalog"
	"sproutDB/sql/session"
	"sproutDB/txn"
	"sproutDB/util"
)

type Server struct {
	Manager *txn.Manager
	Catalog *catalog.Catalog

	listener net.Listener
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewServer(manager *txn.Manager, c *catalog.Catalog) *Server {
	return &Server{
		Manager: manager,
		Catalog: c,
		conns:   make(map[net.Conn]struct{}),
	}
}

const maxAcceptDelay = time.Second

// acceptBackoff doubles the wait after each failed accept, from 5ms up to maxAcceptDelay.
func acceptBackoff(delay time.Duration) time.Duration {
	if delay == 0 {
		return 5 * time.Millisecond
	}
	delay *= 2
	if delay > maxAcceptDelay {
		delay = maxAcceptDelay
	}
	return delay
}

func (s *Server) Listen(sqlAddr string) error {
	listener, err := net.Listen("tcp", sqlAddr)
	if err != nil {
		return errors.Wrapf(err, "listen sql addr %s", sqlAddr)
	}
	s.listener = listener
	logger.Infof("listening for sql clients on %s", listener.Addr())
	return nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts clients until Close is called, one goroutine per connection.
func (s *Server) Serve() error {
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			delay = acceptBackoff(delay)
			logger.Warnf("accept sql client: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		clientSession := NewSession(s)
		go func() {
			defer s.wg.Done()
			clientSession.Handle(conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

type ClientSession struct {
	Server *Server
	SQL    *session.Session
}

func NewSession(s *Server) *ClientSession {
	return &ClientSession{
		Server: s,
		SQL:    session.NewSession(s.Manager, s.Catalog),
	}
}

func (s *ClientSession) Handle(conn net.Conn) {
	defer conn.Close()
	defer s.SQL.Close()
	for {
		resp, err := s.Request(conn)
		if _, ok := err.(*NetConn); ok {
			logger.Debugf("sql client %s gone: %v", conn.RemoteAddr(), err)
			return
		}
		if err != nil {
			resp = &RespError{Errmsg: err.Error()}
		}

		respByte, err := encodeResponse(resp)
		if err != nil {
			logger.Errorf("encode response: %v", err)
			resp = &RespError{Errmsg: err.Error()}
			respByte, _ = util.GobEncode(resp.(*RespError))
		}
		if err := util.SendPrefixMsg(conn, [2]byte{ClientPrefix, ResponsePrefix(resp)}, respByte); err != nil {
			logger.Debugf("sql client %s gone: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func encodeResponse(resp Response) ([]byte, error) {
	switch v := resp.(type) {
	case *ExecuteResp:
		return util.GobEncode(v)
	case *GetTableResp:
		return util.GobEncode(v)
	case *ListTables:
		return util.GobEncode(v)
	case *Status:
		return util.GobEncode(v)
	case *RespError:
		return util.GobEncode(v)
	}
	return nil, errors.Errorf("unknown response %T", resp)
}

type NetConn struct {
	Err error
}

func (n *NetConn) Error() string {
	return n.Err.Error()
}

// Request reads one request from conn and runs it. A *NetConn error means
// the connection is unusable.
func (s *ClientSession) Request(conn net.Conn) (Response, error) {
	prefix, err := util.ReceivePrefix(conn)
	if err != nil {
		return nil, &NetConn{Err: err}
	}
	if prefix[0] != ClientPrefix {
		return nil, &NetConn{Err: errors.New("conn protocol validation failed: invalid packet header")}
	}
	reqByte, err := util.ReceiveMsg(conn)
	if err != nil {
		return nil, &NetConn{Err: err}
	}

	switch prefix[1] {
	case ExecutePrefix:
		execute := Execute{}
		if err := util.GobDecode(reqByte, &execute); err != nil {
			return nil, err
		}
		result, err := s.SQL.Execute(execute.Plan)
		if err != nil {
			return nil, err
		}
		return &ExecuteResp{Data: result}, nil
	case BeginPrefix:
		begin := Begin{}
		if err := util.GobDecode(reqByte, &begin); err != nil {
			return nil, err
		}
		result, err := s.SQL.Begin(begin.ReadOnly)
		if err != nil {
			return nil, err
		}
		return &ExecuteResp{Data: result}, nil
	case CommitPrefix:
		result, err := s.SQL.Commit()
		if err != nil {
			return nil, err
		}
		return &ExecuteResp{Data: result}, nil
	case RollbackPrefix:
		result, err := s.SQL.Rollback()
		if err != nil {
			return nil, err
		}
		return &ExecuteResp{Data: result}, nil
	case GetTablePrefix:
		getTable := GetTable{}
		if err := util.GobDecode(reqByte, &getTable); err != nil {
			return nil, err
		}
		table, err := s.SQL.ReadTable(getTable.Database, getTable.Table)
		if err != nil {
			return nil, err
		}
		return &GetTableResp{Data: table}, nil
	case ListTablesPrefix:
		listTables := ListTables{}
		if err := util.GobDecode(reqByte, &listTables); err != nil {
			return nil, err
		}
		tables, err := s.SQL.ListTables(listTables.Database)
		if err != nil {
			return nil, err
		}
		return &ListTables{Database: listTables.Database, Data: tables}, nil
	case StatusPrefix:
		status, err := s.Server.Manager.Status()
		if err != nil {
			return nil, err
		}
		info := &StatusInfo{MVCC: status, Sessions: s.Server.sessionCount()}
		for _, db := range s.Server.Catalog.ListDatabases() {
			info.Databases = append(info.Databases, db.GetName())
		}
		return &Status{Data: info}, nil
	}

	return nil, errors.Errorf("unknown request kind %#x", prefix[1])
}
