package httpclient

import (
	"bytes"
	"fmt"
	"net/http"
)

// encodeOne encodes a single outbound message per spec.md §4.D's encoder
// contract: *http.Request (whole, self-contained, or the opening message of
// a chunked stream), Chunk, or LastChunk.
func (c *Codec) encodeOne(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case *http.Request:
		return c.encodeRequest(m)
	case Chunk:
		return encodeChunk(m.Data), nil
	case LastChunk:
		if c.opts.failOnMissingResponse && !c.done {
			c.outstanding++
		}
		return lastChunkBytes(), nil
	default:
		return nil, fmt.Errorf("httpclient: unsupported outbound message type %T", msg)
	}
}

func (c *Codec) encodeRequest(req *http.Request) ([]byte, error) {
	if !c.done {
		c.methods = append(c.methods, req.Method)
	}

	// A nil Body with a negative ContentLength is the opening message of a
	// chunked outbound stream (SPEC_FULL.md §9.1): emit only the request
	// line and headers, forcing chunked framing; the body follows as
	// separate Chunk/LastChunk messages.
	if req.Body == nil && req.ContentLength < 0 {
		var buf bytes.Buffer
		writeRequestLineAndHeaders(&buf, req)
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	if err := req.Write(&buf); err != nil {
		return nil, fmt.Errorf("httpclient: encoding request: %w", err)
	}
	if c.opts.failOnMissingResponse && !c.done {
		c.outstanding++
	}
	return buf.Bytes(), nil
}
