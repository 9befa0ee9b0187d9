package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownMessage is returned for envelope types nobody handles
var ErrUnknownMessage = errors.New("unknown message type")

// Frame is one outgoing websocket message
type Frame struct {
	Binary bool
	Data   []byte
}

// Encode marshals a typed JSON envelope
func Encode(t string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(Envelope{T: t, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return data, nil
}

// TextFrame encodes an envelope into a text frame
func TextFrame(t string, payload interface{}) (Frame, error) {
	data, err := Encode(t, payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Data: data}, nil
}

// DecodeEnvelope reads the type and raw payload of an incoming message
func DecodeEnvelope(raw []byte) (InEnvelope, error) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope payload into T
func DecodePayload[T any](env InEnvelope) (T, error) {
	var v T
	if len(env.D) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(env.D, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", env.T, err)
	}
	return v, nil
}

// EncodeSnapshot packs a snapshot with msgpack, reusing the json field names
func EncodeSnapshot(s Snapshot) (Frame, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&s); err != nil {
		return Frame{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Frame{Binary: true, Data: buf.Bytes()}, nil
}

// DecodeSnapshot unpacks a binary snapshot frame
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
