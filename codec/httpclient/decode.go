package httpclient

import (
	"bytes"
	"io"
	"net/http"
)

// decodeOne attempts to decode exactly one inbound message (an *http.Response
// in normal mode, or a raw []byte chunk in tunnel mode — though tunnel mode
// is handled by the caller before reaching here) from the front of data.
// Returns ok=false when data does not yet contain a complete message, in
// which case the caller must wait for more bytes before retrying.
func (c *Codec) decodeOne(data []byte) (msg any, consumed int, ok bool) {
	headerEnd := findHeaderEnd(data)
	if headerEnd < 0 {
		if len(data) > c.opts.maxHeaderSize+c.opts.maxInitialLineLength {
			return &DecodingError{Reason: "header block exceeds configured limit"}, len(data), true
		}
		return nil, 0, false
	}

	proto, code, header, err := parseStatusAndHeaders(data[:headerEnd])
	if err != nil {
		return &DecodingError{Reason: "parsing status line/headers", Cause: err}, headerEnd + len(headerTerminator), true
	}
	bodyStart := headerEnd + len(headerTerminator)

	// Policy step 1: 100 Continue is empty and does not consume the queue.
	if code == 100 {
		return c.buildResponse(proto, code, header, http.NoBody), bodyStart, true
	}

	// Policy step 2: dequeue the correlated request method. Protocol
	// invariant: a response arrives only after its request was written.
	method, _ := c.dequeueMethod()

	bodyEmpty := false
	switch {
	case method == http.MethodHead:
		// Policy step 3.
		bodyEmpty = true
	case method == http.MethodConnect && code == 200:
		// Policy step 4: latch tunnel mode, drop any remaining correlations.
		bodyEmpty = true
		c.done = true
		c.methods = nil
	case code/100 == 1 || code == 204 || code == 304:
		// Policy step 5 (default heuristic): these classes never carry a body.
		bodyEmpty = true
	}

	if bodyEmpty {
		if c.opts.failOnMissingResponse {
			c.outstanding--
		}
		return c.buildResponse(proto, code, header, http.NoBody), bodyStart, true
	}

	if isChunked(header) {
		body, bodyConsumed, decoded, derr := decodeChunkedBody(data[bodyStart:], c.opts.maxChunkSize)
		if derr != nil {
			return derr, len(data), true
		}
		if !decoded {
			return nil, 0, false
		}
		if c.opts.failOnMissingResponse {
			c.outstanding--
		}
		return c.buildResponse(proto, code, header, io.NopCloser(bytes.NewReader(body))), bodyStart + bodyConsumed, true
	}

	if n := contentLength(header); n >= 0 {
		if len(data) < bodyStart+n {
			return nil, 0, false
		}
		body := data[bodyStart : bodyStart+n]
		if c.opts.failOnMissingResponse {
			c.outstanding--
		}
		return c.buildResponse(proto, code, header, io.NopCloser(bytes.NewReader(body))), bodyStart + n, true
	}

	// Policy step 5 fallthrough: no Content-Length and no chunked framing.
	// Without a real socket's close event to delimit the body, this decoder
	// treats the response as bodyless rather than reading indefinitely; a
	// transport wired with a real connection-close signal would instead wait
	// for HandleChannelInactive and flush whatever remains as the body.
	if c.opts.failOnMissingResponse {
		c.outstanding--
	}
	return c.buildResponse(proto, code, header, http.NoBody), bodyStart, true
}

func (c *Codec) buildResponse(proto string, code int, header http.Header, body io.ReadCloser) *http.Response {
	return &http.Response{
		Status:     http.StatusText(code),
		StatusCode: code,
		Proto:      proto,
		Header:     header,
		Body:       body,
	}
}
