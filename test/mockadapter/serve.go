// Copyright (c) Dapkit contributors. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dapkit/dapkit/internal/dap"
)

// serve runs the adapter side of the protocol on the given streams until
// the client disconnects or the stream ends.
func serve(in io.Reader, out io.Writer) error {
	decoder := dap.NewDecoder(in)

	var writeMu sync.Mutex
	send := func(msg dap.Message) error {
		data, encodeErr := dap.Encode(msg)
		if encodeErr != nil {
			return encodeErr
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_, writeErr := out.Write(data)
		return writeErr
	}

	var seq uint64
	nextSeq := func() uint64 {
		seq++
		return seq
	}

	for {
		msg, readErr := decoder.Next()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", readErr)
		}

		req, ok := msg.(*dap.Request)
		if !ok {
			continue
		}

		respond := func(body json.RawMessage) error {
			return send(&dap.Response{
				Seq:        nextSeq(),
				RequestSeq: req.Seq,
				Success:    true,
				Command:    req.Command,
				Body:       body,
			})
		}

		switch req.Command {
		case "initialize":
			if respondErr := respond(json.RawMessage(`{"supportsConfigurationDoneRequest":true}`)); respondErr != nil {
				return respondErr
			}
			if sendErr := send(&dap.Event{Seq: nextSeq(), Event: "initialized"}); sendErr != nil {
				return sendErr
			}

		case "launch", "attach":
			if respondErr := respond(nil); respondErr != nil {
				return respondErr
			}
			output, _ := json.Marshal(map[string]string{
				"category": "console",
				"output":   "mock debuggee started\n",
			})
			if sendErr := send(&dap.Event{Seq: nextSeq(), Event: "output", Body: output}); sendErr != nil {
				return sendErr
			}

		case "threads":
			if respondErr := respond(json.RawMessage(`{"threads":[{"id":1,"name":"main"}]}`)); respondErr != nil {
				return respondErr
			}

		case "disconnect":
			if respondErr := respond(nil); respondErr != nil {
				return respondErr
			}
			if sendErr := send(&dap.Event{Seq: nextSeq(), Event: "terminated"}); sendErr != nil {
				return sendErr
			}
			return nil

		default:
			if sendErr := send(&dap.Response{
				Seq:        nextSeq(),
				RequestSeq: req.Seq,
				Success:    false,
				Command:    req.Command,
				Message:    fmt.Sprintf("unsupported command %q", req.Command),
			}); sendErr != nil {
				return sendErr
			}
		}
	}
}
