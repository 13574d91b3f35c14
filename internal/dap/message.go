/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageType is the wire discriminant of a DAP message envelope.
type MessageType string

const (
	MessageTypeRequest  MessageType = "request"
	MessageTypeResponse MessageType = "response"
	MessageTypeEvent    MessageType = "event"
)

// Message is the closed set of DAP wire message shapes.
// The only implementations are *Request, *Response and *Event;
// decode and dispatch sites switch exhaustively over these three.
type Message interface {
	// Type returns the wire discriminant for the message.
	Type() MessageType

	// Sequence returns the message's sequence number.
	Sequence() uint64
}

// Request is a command sent from one peer to the other.
// Payload schemas are adapter-specific; Arguments carries them opaquely.
type Request struct {
	Seq       uint64          `json:"seq"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (r *Request) Type() MessageType { return MessageTypeRequest }
func (r *Request) Sequence() uint64  { return r.Seq }

// Response answers a previously received Request. RequestSeq identifies
// the request being answered; it is the correlation key for the pending
// request table.
type Response struct {
	Seq        uint64          `json:"seq"`
	RequestSeq uint64          `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

func (r *Response) Type() MessageType { return MessageTypeResponse }
func (r *Response) Sequence() uint64  { return r.Seq }

// Event is an unsolicited notification from the adapter.
type Event struct {
	Seq   uint64          `json:"seq"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

func (e *Event) Type() MessageType { return MessageTypeEvent }
func (e *Event) Sequence() uint64  { return e.Seq }

// ErrorResponse is the body shape of a failed Response.
type ErrorResponse struct {
	Error *MessageDetails `json:"error,omitempty"`
}

// MessageDetails is a templated error message reported by the adapter.
// Format may contain "{name}" placeholders resolved against Variables.
type MessageDetails struct {
	ID        int64             `json:"id,omitempty"`
	Format    string            `json:"format"`
	Variables map[string]string `json:"variables,omitempty"`
	ShowUser  bool              `json:"showUser,omitempty"`
}

// Render substitutes each "{key}" placeholder in Format with the matching
// entry from Variables. Placeholders without a matching variable are left
// in place.
func (d *MessageDetails) Render() string {
	msg := d.Format
	for name, value := range d.Variables {
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

// parseErrorResponse extracts the error details from a failed response body.
// Returns nil when the body is absent or does not carry the expected shape;
// adapters are not required to populate a structured error.
func parseErrorResponse(body json.RawMessage) *MessageDetails {
	if len(body) == 0 {
		return nil
	}

	var errResp ErrorResponse
	if unmarshalErr := json.Unmarshal(body, &errResp); unmarshalErr != nil {
		return nil
	}
	return errResp.Error
}

// marshalMessage serializes a message into its JSON envelope, injecting the
// "type" discriminant next to the variant's own fields.
func marshalMessage(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Request:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			*Request
		}{MessageTypeRequest, m})
	case *Response:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			*Response
		}{MessageTypeResponse, m})
	case *Event:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			*Event
		}{MessageTypeEvent, m})
	default:
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}
}

// unmarshalMessage parses a JSON envelope into the matching variant.
// Unknown fields are ignored for forward compatibility; an unknown "type"
// tag is an error because the variant set is closed.
func unmarshalMessage(data []byte) (Message, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if unmarshalErr := json.Unmarshal(data, &envelope); unmarshalErr != nil {
		return nil, fmt.Errorf("invalid message envelope: %w", unmarshalErr)
	}

	switch envelope.Type {
	case MessageTypeRequest:
		var req Request
		if unmarshalErr := json.Unmarshal(data, &req); unmarshalErr != nil {
			return nil, fmt.Errorf("invalid request message: %w", unmarshalErr)
		}
		return &req, nil
	case MessageTypeResponse:
		var resp Response
		if unmarshalErr := json.Unmarshal(data, &resp); unmarshalErr != nil {
			return nil, fmt.Errorf("invalid response message: %w", unmarshalErr)
		}
		return &resp, nil
	case MessageTypeEvent:
		var evt Event
		if unmarshalErr := json.Unmarshal(data, &evt); unmarshalErr != nil {
			return nil, fmt.Errorf("invalid event message: %w", unmarshalErr)
		}
		return &evt, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}
}
