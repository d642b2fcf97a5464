package stream

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Subprotocols offered during the websocket handshake.
const (
	SubprotocolProtobuf = "protobuf.gexdex.v1"
	SubprotocolJSON     = "json.gexdex.v1"
)

// Wire protocols a client may negotiate.
const (
	ProtocolProtobuf = "protobuf"
	ProtocolJSON     = "json"
)

// Type URLs of the protobuf frames. Snapshot payloads are zstd-compressed.
const (
	TypeSystem   = "gexdex.system"
	TypeAck      = "gexdex.ack"
	TypePong     = "gexdex.pong"
	TypeSnapshot = "gexdex.snapshot"
)

// Upstream messages are JSON for both protocols.
type (
	joinGroupRequest struct {
		group string
		ackID *uint64
	}
	leaveGroupRequest struct {
		group string
		ackID *uint64
	}
	pingRequest struct{}
)

type upstreamMessage struct {
	Type  string  `json:"type"`
	Group string  `json:"group"`
	AckID *uint64 `json:"ackId"`
}

func parseUpstreamMessage(data []byte) (any, error) {
	var msg upstreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal upstream message: %w", err)
	}

	switch msg.Type {
	case "joinGroup":
		return &joinGroupRequest{group: msg.Group, ackID: msg.AckID}, nil
	case "leaveGroup":
		return &leaveGroupRequest{group: msg.Group, ackID: msg.AckID}, nil
	case "ping":
		return &pingRequest{}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %q", msg.Type)
	}
}

// buildMessage encodes a control message for the given protocol.
func buildMessage(protocol, typeURL string, fields map[string]any) []byte {
	if protocol == ProtocolJSON {
		data, _ := json.Marshal(fields)
		return data
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil
	}
	value, _ := proto.Marshal(s)
	data, _ := proto.Marshal(&anypb.Any{TypeUrl: typeURL, Value: value})
	return data
}

func buildConnectedMessage(protocol, connID string) []byte {
	return buildMessage(protocol, TypeSystem, map[string]any{
		"type":         "system",
		"event":        "connected",
		"connectionId": connID,
	})
}

func buildAckMessage(protocol string, ackID uint64, success bool, reason string) []byte {
	fields := map[string]any{
		"type":    "ack",
		"ackId":   float64(ackID),
		"success": success,
	}
	if reason != "" {
		fields["error"] = reason
	}
	return buildMessage(protocol, TypeAck, fields)
}

func buildPongMessage(protocol string) []byte {
	return buildMessage(protocol, TypePong, map[string]any{"type": "pong"})
}
