// Package ipc provides inter-process communication between the mmrd
// daemon and client applications (CLI, third-party tools).
//
// The protocol is a request/response pattern with event streaming for
// real-time updates: a fixed binary header carrying the message type and
// request id, followed by a JSON payload, over a unix domain socket.
package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Protocol version for compatibility checking
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x4D495043 // "MIPC" - mmrd IPC

	// MaxPayloadSize bounds a single message payload.
	MaxPayloadSize = 16 << 20
)

// MessageType identifies the type of IPC message
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing         MessageType = 0x0001
	MsgPong         MessageType = 0x0002
	MsgHandshake    MessageType = 0x0003
	MsgHandshakeAck MessageType = 0x0004
	MsgError        MessageType = 0x0005

	// Status messages (0x01xx)
	MsgStatusRequest  MessageType = 0x0100
	MsgStatusResponse MessageType = 0x0101

	// Range operations (0x02xx)
	MsgAppend        MessageType = 0x0200
	MsgAppendResp    MessageType = 0x0201
	MsgRootRequest   MessageType = 0x0202
	MsgRootResponse  MessageType = 0x0203
	MsgPeaksRequest  MessageType = 0x0204
	MsgPeaksResponse MessageType = 0x0205
	MsgProofRequest  MessageType = 0x0206
	MsgProofResponse MessageType = 0x0207
	MsgNodeRequest   MessageType = 0x0208
	MsgNodeResponse  MessageType = 0x0209

	// Event streaming (0x03xx)
	MsgSubscribe     MessageType = 0x0300
	MsgSubscribeResp MessageType = 0x0301
	MsgEvent         MessageType = 0x0302
)

// EventType identifies the type of streamed event
type EventType uint16

const (
	EventRangeUpdated   EventType = 0x0001
	EventDaemonShutdown EventType = 0x0002
)

// PermissionLevel defines client access levels. Appending requires
// PermWrite; holding a write-level connection is the append capability.
type PermissionLevel uint8

const (
	PermRead  PermissionLevel = 0x01
	PermWrite PermissionLevel = 0x02
)

// Header is the fixed-size message header (16 bytes)
type Header struct {
	Magic     uint32      // Protocol magic number
	Version   uint8       // Protocol version
	Flags     uint8       // Reserved
	Type      MessageType // Message type
	RequestID uint32      // Request ID for correlation
	Length    uint32      // Payload length (not including header)
}

// HeaderSize is the encoded header length in bytes.
const HeaderSize = 16

// Message is a header plus its JSON payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage builds a message of the given type with a JSON-encoded
// payload. A nil payload value produces an empty payload.
func NewMessage(t MessageType, requestID uint32, payload any) (*Message, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      t,
			RequestID: requestID,
			Length:    uint32(len(body)),
		},
		Payload: body,
	}, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("ipc: empty payload for message type 0x%04x", m.Header.Type)
	}
	return json.Unmarshal(m.Payload, v)
}

// WriteMessage writes a framed message.
func WriteMessage(w io.Writer, m *Message) error {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(m.Payload))

	binary.Write(&buf, binary.BigEndian, m.Header.Magic)
	buf.WriteByte(m.Header.Version)
	buf.WriteByte(m.Header.Flags)
	binary.Write(&buf, binary.BigEndian, uint16(m.Header.Type))
	binary.Write(&buf, binary.BigEndian, m.Header.RequestID)
	binary.Write(&buf, binary.BigEndian, uint32(len(m.Payload)))
	buf.Write(m.Payload)

	_, err := w.Write(buf.Bytes())
	return err
}

// ReadMessage reads one framed message.
func ReadMessage(r io.Reader) (*Message, error) {
	head := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}

	m := &Message{}
	m.Header.Magic = binary.BigEndian.Uint32(head[0:4])
	m.Header.Version = head[4]
	m.Header.Flags = head[5]
	m.Header.Type = MessageType(binary.BigEndian.Uint16(head[6:8]))
	m.Header.RequestID = binary.BigEndian.Uint32(head[8:12])
	m.Header.Length = binary.BigEndian.Uint32(head[12:16])

	if m.Header.Magic != ProtocolMagic {
		return nil, fmt.Errorf("ipc: bad magic 0x%08x", m.Header.Magic)
	}
	if m.Header.Version != ProtocolVersion {
		return nil, fmt.Errorf("ipc: unsupported protocol version %d", m.Header.Version)
	}
	if m.Header.Length > MaxPayloadSize {
		return nil, fmt.Errorf("ipc: payload of %d bytes exceeds limit", m.Header.Length)
	}

	if m.Header.Length > 0 {
		m.Payload = make([]byte, m.Header.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

// HandshakeRequest opens a session.
type HandshakeRequest struct {
	ClientName string `json:"client_name"`
	Version    string `json:"version"`
}

// HandshakeAck confirms a session and grants a permission level.
type HandshakeAck struct {
	ServerVersion string          `json:"server_version"`
	Permission    PermissionLevel `json:"permission"`
	Algorithm     string          `json:"algorithm"`
}

// ErrorPayload carries a request failure.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusResponse describes the daemon and its range.
type StatusResponse struct {
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Size          uint64 `json:"size"`
	LeafCount     uint64 `json:"leaf_count"`
	PeakCount     int    `json:"peak_count"`
	Root          string `json:"root"`
	Algorithm     string `json:"algorithm"`
	StoreBackend  string `json:"store_backend"`
}

// AppendRequest appends a batch of leaves in order. Leaves are raw
// bytes; JSON carries them base64-encoded.
type AppendRequest struct {
	Leaves [][]byte `json:"leaves"`
}

// AppendResponse reports the post-batch state.
type AppendResponse struct {
	Size      uint64   `json:"size"`
	LeafCount uint64   `json:"leaf_count"`
	Root      string   `json:"root"`
	Positions []uint64 `json:"positions"` // leaf position of each appended datum
}

// RootResponse carries the current root.
type RootResponse struct {
	Size uint64 `json:"size"`
	Root string `json:"root"`
}

// PeaksResponse carries the current peaks, left to right.
type PeaksResponse struct {
	Size  uint64   `json:"size"`
	Peaks []string `json:"peaks"`
}

// ProofRequest asks for an inclusion proof.
type ProofRequest struct {
	Position uint64 `json:"position"`
}

// ProofResponse carries the proof envelope.
type ProofResponse struct {
	Proof json.RawMessage `json:"proof"`
}

// NodeRequest asks for a stored node digest.
type NodeRequest struct {
	Position uint64 `json:"position"`
}

// NodeResponse carries a node digest.
type NodeResponse struct {
	Position uint64 `json:"position"`
	Digest   string `json:"digest"`
}

// SubscribeRequest opts the connection into event streaming.
type SubscribeRequest struct{}

// Event is a streamed notification.
type Event struct {
	Type  EventType    `json:"type"`
	Range *RangeUpdate `json:"range,omitempty"`
}

// RangeUpdate mirrors one non-empty append batch.
type RangeUpdate struct {
	Size  uint64   `json:"size"`
	Root  string   `json:"root"`
	Peaks []string `json:"peaks"`
}
