package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dgnsrekt/gexdex/internal/analyzer"
	"github.com/dgnsrekt/gexdex/internal/gex"
)

// Level is one strike of a snapshot.
type Level struct {
	Strike          float64 `json:"strike"`
	NetGEXB         float64 `json:"net_gex_b"`
	NetDEXB         float64 `json:"net_dex_b"`
	HedgingPressure float64 `json:"hedging_pressure"`
}

// Snapshot is the payload pushed to a group on every tick.
type Snapshot struct {
	Group           string          `json:"group"`
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Source          string          `json:"source"`
	Expiry          string          `json:"expiry"`
	UnderlyingPrice float64         `json:"underlying_price"`
	GeneratedAt     time.Time       `json:"generated_at"`
	ATM             gex.AtmInfo     `json:"atm"`
	Totals          gex.Totals      `json:"totals"`
	Flow            gex.FlowSummary `json:"flow"`
	FlipZones       []gex.FlipZone  `json:"flip_zones"`
	Levels          []Level         `json:"levels"`
}

// NewSnapshot condenses a report for streaming.
func NewSnapshot(group string, rep *analyzer.Report) Snapshot {
	levels := make([]Level, len(rep.Result.Rows))
	for i, r := range rep.Result.Rows {
		levels[i] = Level{
			Strike:          r.Strike,
			NetGEXB:         r.NetGEXB,
			NetDEXB:         r.NetDEXB,
			HedgingPressure: r.HedgingPressure,
		}
	}
	flips := rep.Result.FlipZones
	if flips == nil {
		flips = []gex.FlipZone{}
	}
	return Snapshot{
		Group:           group,
		ID:              rep.ID,
		Symbol:          rep.Symbol,
		Source:          rep.Source,
		Expiry:          rep.Expiry,
		UnderlyingPrice: rep.UnderlyingPrice,
		GeneratedAt:     rep.GeneratedAt,
		ATM:             rep.Result.ATM,
		Totals:          rep.Result.Totals,
		Flow:            rep.Result.Flow,
		FlipZones:       flips,
		Levels:          levels,
	}
}

// Encoder turns snapshots into wire frames (protobuf Struct + zstd).
type Encoder struct {
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
}

func NewEncoder() (*Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Encoder{zstdEncoder: enc, zstdDecoder: dec}, nil
}

// EncodeJSON builds the text frame for JSON clients.
func (e *Encoder) EncodeJSON(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(struct {
		Type  string   `json:"type"`
		Group string   `json:"group"`
		Data  Snapshot `json:"data"`
	}{Type: "message", Group: s.Group, Data: s})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// EncodeProtobuf builds the binary frame for protobuf clients: an Any with
// TypeSnapshot whose value is a zstd-compressed google.protobuf.Struct.
func (e *Encoder) EncodeProtobuf(s Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var st structpb.Struct
	if err := st.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("convert snapshot to struct: %w", err)
	}
	pbData, err := proto.Marshal(&st)
	if err != nil {
		return nil, fmt.Errorf("marshal protobuf: %w", err)
	}
	data, err := proto.Marshal(&anypb.Any{
		TypeUrl: TypeSnapshot,
		Value:   e.zstdEncoder.EncodeAll(pbData, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal protobuf: %w", err)
	}
	return data, nil
}

// DecodeProtobuf reverses EncodeProtobuf into a snapshot.
func (e *Encoder) DecodeProtobuf(frame []byte) (Snapshot, error) {
	var msg anypb.Any
	if err := proto.Unmarshal(frame, &msg); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	if msg.GetTypeUrl() != TypeSnapshot {
		return Snapshot{}, fmt.Errorf("unexpected frame type %q", msg.GetTypeUrl())
	}
	pbData, err := e.zstdDecoder.DecodeAll(msg.GetValue(), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decompress frame: %w", err)
	}
	var st structpb.Struct
	if err := proto.Unmarshal(pbData, &st); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal struct: %w", err)
	}
	raw, err := st.MarshalJSON()
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Close releases encoder resources.
func (e *Encoder) Close() {
	if e.zstdEncoder != nil {
		e.zstdEncoder.Close()
	}
	if e.zstdDecoder != nil {
		e.zstdDecoder.Close()
	}
}

// Frames encodes one snapshot at most once per protocol.
// Not safe for concurrent use.
type Frames struct {
	enc      *Encoder
	snapshot Snapshot
	encoded  map[string][]byte
}

func NewFrames(enc *Encoder, s Snapshot) *Frames {
	return &Frames{enc: enc, snapshot: s, encoded: make(map[string][]byte, 2)}
}

// For returns the frame for a negotiated protocol.
func (f *Frames) For(protocol string) ([]byte, error) {
	if data, ok := f.encoded[protocol]; ok {
		return data, nil
	}
	var (
		data []byte
		err  error
	)
	if protocol == ProtocolJSON {
		data, err = f.enc.EncodeJSON(f.snapshot)
	} else {
		data, err = f.enc.EncodeProtobuf(f.snapshot)
	}
	if err != nil {
		return nil, err
	}
	f.encoded[protocol] = data
	return data, nil
}
