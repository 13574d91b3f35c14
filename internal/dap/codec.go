/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wire framing is the header-delimited convention of the protocol family:
// one "Content-Length: N" header, a blank line, then N bytes of JSON.
const (
	contentLengthHeader = "Content-Length"
	headerTerminator    = "\r\n\r\n"

	// maxHeaderBytes bounds how far the decoder scans for the header
	// terminator before declaring the stream malformed.
	maxHeaderBytes = 4 << 10

	// maxMessageBytes bounds a single message body. Anything larger is a
	// framing error, not a legitimate payload.
	maxMessageBytes = 16 << 20
)

// ErrNeedMoreBytes is returned by Decode when buf does not yet hold a
// complete message. It is a resumption signal, not a failure.
var ErrNeedMoreBytes = errors.New("need more bytes")

// Encode serializes a message with its Content-Length framing.
func Encode(msg Message) ([]byte, error) {
	payload, marshalErr := marshalMessage(msg)
	if marshalErr != nil {
		return nil, marshalErr
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %d%s", contentLengthHeader, len(payload), headerTerminator)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode parses one complete message from the front of buf, returning the
// message and the number of bytes consumed. When buf holds only a prefix of
// a message, it returns ErrNeedMoreBytes; the caller appends more input and
// retries. Ill-formed input yields a MalformedMessageError and never panics.
func Decode(buf []byte) (Message, int, error) {
	headerEnd := bytes.Index(buf, []byte(headerTerminator))
	if headerEnd < 0 {
		if len(buf) > maxHeaderBytes {
			return nil, 0, &MalformedMessageError{
				ByteCount: len(buf),
				Reason:    errors.New("no header terminator within limit"),
			}
		}
		return nil, 0, ErrNeedMoreBytes
	}

	contentLength, headerErr := parseContentLength(buf[:headerEnd])
	if headerErr != nil {
		return nil, 0, &MalformedMessageError{
			ByteCount: headerEnd,
			Reason:    headerErr,
		}
	}
	if contentLength > maxMessageBytes {
		return nil, 0, &MalformedMessageError{
			ByteCount: headerEnd,
			Reason:    fmt.Errorf("content length %d exceeds limit", contentLength),
		}
	}

	bodyStart := headerEnd + len(headerTerminator)
	if len(buf) < bodyStart+contentLength {
		return nil, 0, ErrNeedMoreBytes
	}

	body := buf[bodyStart : bodyStart+contentLength]
	msg, unmarshalErr := unmarshalMessage(body)
	if unmarshalErr != nil {
		return nil, 0, &MalformedMessageError{
			ByteCount: contentLength,
			Reason:    unmarshalErr,
		}
	}

	return msg, bodyStart + contentLength, nil
}

// parseContentLength extracts the Content-Length value from the header block.
// Header names are matched case-insensitively; unrecognized headers are
// ignored for forward compatibility.
func parseContentLength(header []byte) (int, error) {
	for _, line := range strings.Split(string(header), "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), contentLengthHeader) {
			continue
		}

		length, parseErr := strconv.Atoi(strings.TrimSpace(value))
		if parseErr != nil {
			return 0, fmt.Errorf("invalid %s value: %w", contentLengthHeader, parseErr)
		}
		if length < 0 {
			return 0, fmt.Errorf("negative %s value %d", contentLengthHeader, length)
		}
		return length, nil
	}

	return 0, fmt.Errorf("missing %s header", contentLengthHeader)
}

// Decoder reads framed messages from a byte stream, buffering partial input
// between reads. A message split across any number of reads decodes the same
// as one delivered whole.
type Decoder struct {
	r   io.Reader
	buf []byte
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next blocks until one complete message is available and returns it.
// End of stream with no buffered partial input returns io.EOF; end of
// stream mid-message returns io.ErrUnexpectedEOF. Transient zero-byte
// reads are retried, not treated as end of stream.
func (d *Decoder) Next() (Message, error) {
	for {
		if len(d.buf) > 0 {
			msg, consumed, decodeErr := Decode(d.buf)
			if decodeErr == nil {
				d.buf = d.buf[consumed:]
				return msg, nil
			}
			if !errors.Is(decodeErr, ErrNeedMoreBytes) {
				return nil, decodeErr
			}
		}

		chunk := make([]byte, 4096)
		n, readErr := d.r.Read(chunk)
		if n > 0 {
			d.buf = append(d.buf, chunk[:n]...)
		}
		if readErr != nil {
			if n > 0 {
				// Decode whatever arrived with the error before failing.
				continue
			}
			if errors.Is(readErr, io.EOF) {
				if len(d.buf) > 0 {
					return nil, io.ErrUnexpectedEOF
				}
				return nil, io.EOF
			}
			return nil, readErr
		}
	}
}
