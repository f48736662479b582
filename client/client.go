package client

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	"sproutDB/server"
	"sproutDB/sql/plan"
	"sproutDB/sql/session"
	"sproutDB/txn"
	"sproutDB/util"
)

var ErrProtocol = errors.New("protocol validation failed: invalid packet header")

// Client is a connection to a sproutDB server. Calls are serialized.
type Client struct {
	mu   sync.Mutex
	Conn net.Conn
	// id of the explicit transaction opened by Begin, empty otherwise
	TxnID string
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return &Client{Conn: conn}, nil
}

func (c *Client) Close() error {
	return c.Conn.Close()
}

// Call sends request and waits for its response. A RespError from the
// server is returned as the error.
func (c *Client) Call(request server.Request) (server.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := [2]byte{server.ClientPrefix, server.RequestPrefix(request)}
	var (
		reqByte []byte
		err     error
	)
	switch v := request.(type) {
	case *server.Execute:
		reqByte, err = util.GobEncode(v)
	case *server.Begin:
		reqByte, err = util.GobEncode(v)
	case *server.GetTable:
		reqByte, err = util.GobEncode(v)
	case *server.ListTables:
		reqByte, err = util.GobEncode(v)
	case *server.Status:
		reqByte, err = util.GobEncode(v)
	case *server.Commit, *server.Rollback:
	default:
		return nil, errors.Errorf("unknown request %T", request)
	}
	if err != nil {
		return nil, err
	}
	if err := util.SendPrefixMsg(c.Conn, prefix, reqByte); err != nil {
		return nil, errors.Wrap(err, "send request")
	}

	respPrefix, err := util.ReceivePrefix(c.Conn)
	if err != nil {
		return nil, errors.Wrap(err, "receive response")
	}
	if respPrefix[0] != server.ClientPrefix {
		return nil, ErrProtocol
	}
	respByte, err := util.ReceiveMsg(c.Conn)
	if err != nil {
		return nil, errors.Wrap(err, "receive response")
	}

	switch respPrefix[1] {
	case server.ExecutePrefix:
		resp := &server.ExecuteResp{}
		return resp, util.GobDecode(respByte, resp)
	case server.GetTablePrefix:
		resp := &server.GetTableResp{}
		return resp, util.GobDecode(respByte, resp)
	case server.ListTablesPrefix:
		resp := &server.ListTables{}
		return resp, util.GobDecode(respByte, resp)
	case server.StatusPrefix:
		resp := &server.Status{}
		return resp, util.GobDecode(respByte, resp)
	case server.RespErrPrefix:
		resp := &server.RespError{}
		if err := util.GobDecode(respByte, resp); err != nil {
			return nil, err
		}
		return nil, resp
	}
	return nil, ErrProtocol
}

func (c *Client) execute(request server.Request) (*session.Result, error) {
	resp, err := c.Call(request)
	if err != nil {
		return nil, err
	}
	v, ok := resp.(*server.ExecuteResp)
	if !ok {
		return nil, errors.Errorf("unexpected response %T", resp)
	}
	return v.Data, nil
}

func (c *Client) Execute(p *plan.CreatePlan) (*session.Result, error) {
	result, err := c.execute(&server.Execute{Plan: p})
	if err != nil {
		return nil, err
	}
	if result.Status == txn.ResultAborted {
		c.TxnID = ""
	}
	return result, nil
}

func (c *Client) Begin(readOnly bool) (*session.Result, error) {
	result, err := c.execute(&server.Begin{ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}
	c.TxnID = result.TxnID
	return result, nil
}

func (c *Client) Commit() (*session.Result, error) {
	c.TxnID = ""
	return c.execute(&server.Commit{})
}

func (c *Client) Rollback() (*session.Result, error) {
	c.TxnID = ""
	return c.execute(&server.Rollback{})
}

func (c *Client) GetTable(database, table string) (*session.TableInfo, error) {
	resp, err := c.Call(&server.GetTable{Database: database, Table: table})
	if err != nil {
		return nil, err
	}
	v, ok := resp.(*server.GetTableResp)
	if !ok {
		return nil, errors.Errorf("unexpected response %T", resp)
	}
	return v.Data, nil
}

func (c *Client) ListTables(database string) ([]string, error) {
	resp, err := c.Call(&server.ListTables{Database: database})
	if err != nil {
		return nil, err
	}
	v, ok := resp.(*server.ListTables)
	if !ok {
		return nil, errors.Errorf("unexpected response %T", resp)
	}
	return v.Data, nil
}

func (c *Client) Status() (*server.StatusInfo, error) {
	resp, err := c.Call(&server.Status{})
	if err != nil {
		return nil, err
	}
	v, ok := resp.(*server.Status)
	if !ok {
		return nil, errors.Errorf("unexpected response %T", resp)
	}
	return v.Data, nil
}
