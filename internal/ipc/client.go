package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"mmrd/internal/mmr"
)

// ClientError is a request failure reported by the daemon.
type ClientError struct {
	Code    string
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("ipc: %s (%s)", e.Message, e.Code)
}

// Client is a connection to the daemon from a control tool.
type Client struct {
	conn       net.Conn
	nextID     atomic.Uint32
	Ack        HandshakeAck
	clientName string
}

// Dial connects to the daemon socket and performs the handshake.
func Dial(socketPath, clientName, version string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}

	c := &Client{conn: conn, clientName: clientName}

	var ack HandshakeAck
	if err := c.Call(MsgHandshake, HandshakeRequest{ClientName: clientName, Version: version}, MsgHandshakeAck, &ack); err != nil {
		conn.Close()
		return nil, err
	}
	c.Ack = ack
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request and decodes the matching response into resp.
// A MsgError response is returned as a *ClientError.
func (c *Client) Call(reqType MessageType, reqPayload any, respType MessageType, resp any) error {
	id := c.nextID.Add(1)

	msg, err := NewMessage(reqType, id, reqPayload)
	if err != nil {
		return err
	}
	if err := WriteMessage(c.conn, msg); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	for {
		reply, err := ReadMessage(c.conn)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		// Events may interleave with responses on a subscribed
		// connection; skip them here.
		if reply.Header.Type == MsgEvent {
			continue
		}
		if reply.Header.RequestID != id {
			continue
		}

		if reply.Header.Type == MsgError {
			var ep ErrorPayload
			if err := reply.Decode(&ep); err != nil {
				return fmt.Errorf("malformed error response: %w", err)
			}
			return &ClientError{Code: ep.Code, Message: ep.Message}
		}
		if reply.Header.Type != respType {
			return fmt.Errorf("ipc: unexpected response type 0x%04x", reply.Header.Type)
		}
		if resp == nil {
			return nil
		}
		return reply.Decode(resp)
	}
}

// Ping round-trips a control message.
func (c *Client) Ping() error {
	return c.Call(MsgPing, nil, MsgPong, nil)
}

// Status fetches the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.Call(MsgStatusRequest, nil, MsgStatusResponse, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Append appends leaves in order and returns the post-batch state.
func (c *Client) Append(leaves [][]byte) (*AppendResponse, error) {
	var resp AppendResponse
	if err := c.Call(MsgAppend, AppendRequest{Leaves: leaves}, MsgAppendResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Root fetches the current root.
func (c *Client) Root() (*RootResponse, error) {
	var resp RootResponse
	if err := c.Call(MsgRootRequest, nil, MsgRootResponse, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Peaks fetches the current peaks.
func (c *Client) Peaks() (*PeaksResponse, error) {
	var resp PeaksResponse
	if err := c.Call(MsgPeaksRequest, nil, MsgPeaksResponse, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Proof fetches an inclusion proof for the leaf at the given position.
func (c *Client) Proof(position uint64) (*mmr.Proof, error) {
	var resp ProofResponse
	if err := c.Call(MsgProofRequest, ProofRequest{Position: position}, MsgProofResponse, &resp); err != nil {
		return nil, err
	}

	var proof mmr.Proof
	if err := json.Unmarshal(resp.Proof, &proof); err != nil {
		return nil, fmt.Errorf("decode proof envelope: %w", err)
	}
	return &proof, nil
}

// Node fetches the digest stored at a position.
func (c *Client) Node(position uint64) (*NodeResponse, error) {
	var resp NodeResponse
	if err := c.Call(MsgNodeRequest, NodeRequest{Position: position}, MsgNodeResponse, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Subscribe opts in to event streaming and invokes fn for every event
// until the connection closes or fn returns false.
func (c *Client) Subscribe(fn func(Event) bool) error {
	if err := c.Call(MsgSubscribe, SubscribeRequest{}, MsgSubscribeResp, nil); err != nil {
		return err
	}

	for {
		msg, err := ReadMessage(c.conn)
		if err != nil {
			return err
		}
		if msg.Header.Type != MsgEvent {
			continue
		}
		var event Event
		if err := msg.Decode(&event); err != nil {
			return err
		}
		if !fn(event) {
			return nil
		}
	}
}
