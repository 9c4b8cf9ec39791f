package callrelay

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// 受信イベント
const (
	EventCallRequest = "call_request"
	EventCallAccept  = "call_accept"
	EventCallEnd     = "call_end"
)

// 送信イベント
const (
	EventIncomingCall = "incoming_call"
	EventCallAccepted = "call_accepted"
	EventCallEnded    = "call_ended"
	EventError        = "error"
)

// Envelope: {"event": ..., "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ID: ブラウザからは数値でも文字列でも来る
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*id = ID(v)
	return nil
}

type CallPayload struct {
	StudentID   ID     `json:"studentId"`
	StudentName string `json:"studentName,omitempty"`
	By          string `json:"by,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
