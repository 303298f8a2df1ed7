package httpclient

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// wire.go is the small adapter SPEC_FULL.md §4.E names: it satisfies the
// "underlying HTTP decoder/encoder" collaborator boundary spec.md §6 assumes
// is already implemented, using net/textproto (the same line/header reader
// net/http's own response parser is built on) and net/http's Request/
// Response value types. The Codec above owns method correlation and the
// isContentAlwaysEmpty policy; this file only knows HTTP/1.1 wire syntax.

// headerTerminator is the blank line separating headers from body.
var headerTerminator = []byte("\r\n\r\n")

// findHeaderEnd returns the index of the first byte of the header
// terminator, or -1 if data does not yet contain a complete header block.
func findHeaderEnd(data []byte) int {
	return bytes.Index(data, headerTerminator)
}

// parseStatusAndHeaders parses a complete "STATUS-LINE\r\nHeader: value\r\n..."
// block (without the trailing blank line) via net/textproto, the same
// primitive net/http's response parser uses internally.
func parseStatusAndHeaders(block []byte) (proto string, code int, header http.Header, err error) {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(block)))
	line, err := tp.ReadLine()
	if err != nil {
		return "", 0, nil, fmt.Errorf("reading status line: %w", err)
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, nil, fmt.Errorf("malformed status line %q", line)
	}
	proto = parts[0]
	code, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, nil, fmt.Errorf("malformed status code in %q: %w", line, err)
	}
	mh, err := tp.ReadMIMEHeader()
	// The block ends without the blank line, so textproto reports io.EOF
	// after the last header; a status line with no headers is valid too.
	if err != nil && err != io.EOF && len(mh) == 0 {
		return "", 0, nil, fmt.Errorf("reading headers: %w", err)
	}
	return proto, code, http.Header(mh), nil
}

// contentLength returns the parsed Content-Length header value, or -1 if
// absent or malformed.
func contentLength(h http.Header) int {
	v := h.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// isChunked reports whether Transfer-Encoding names chunked as the last
// (outermost) coding, per RFC 7230 §3.3.1.
func isChunked(h http.Header) bool {
	te := h.Get("Transfer-Encoding")
	return strings.EqualFold(strings.TrimSpace(lastToken(te)), "chunked")
}

func lastToken(csv string) string {
	parts := strings.Split(csv, ",")
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-1])
}

// decodeChunkedBody parses a chunked-transfer-encoded body starting at
// data[0]. Returns the decoded body bytes, the number of input bytes
// consumed (including the terminal "0\r\n\r\n"), and ok=false if data does
// not yet contain a complete chunked body (caller should wait for more
// bytes). A chunk declaring a size above maxChunkSize is rejected as
// malformed rather than silently truncated.
func decodeChunkedBody(data []byte, maxChunkSize int) (body []byte, consumed int, ok bool, err error) {
	r := bufio.NewReader(bytes.NewReader(data))
	var out []byte
	total := 0
	for {
		sizeLine, lerr := r.ReadString('\n')
		if lerr != nil {
			return nil, 0, false, nil // incomplete chunk-size line; wait for more
		}
		total += len(sizeLine)
		sizeLine = strings.TrimRight(sizeLine, "\r\n")
		if idx := strings.IndexByte(sizeLine, ';'); idx >= 0 {
			sizeLine = sizeLine[:idx] // ignore chunk extensions
		}
		size, perr := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
		if perr != nil {
			return nil, 0, false, &DecodingError{Reason: "malformed chunk size", Cause: perr}
		}
		if int(size) > maxChunkSize {
			return nil, 0, false, &DecodingError{Reason: fmt.Sprintf("chunk size %d exceeds limit %d", size, maxChunkSize)}
		}
		if size == 0 {
			// Terminal chunk: consume the trailing CRLF (trailers unsupported).
			trailer, terr := r.ReadString('\n')
			if terr != nil {
				return nil, 0, false, nil
			}
			total += len(trailer)
			return out, total, true, nil
		}
		chunk := make([]byte, size)
		if _, cerr := readFull(r, chunk); cerr != nil {
			return nil, 0, false, nil // body bytes not fully arrived yet
		}
		total += len(chunk)
		out = append(out, chunk...)
		crlf, cerr := r.ReadString('\n')
		if cerr != nil {
			return nil, 0, false, nil
		}
		total += len(crlf)
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// writeRequestLineAndHeaders writes just the request line and headers (no
// body) for a chunked-streaming request's opening message, forcing
// "Transfer-Encoding: chunked" — the supplemented outbound-streaming case
// SPEC_FULL.md §9.1 names, which net/http's Request.Write does not produce
// on its own for a Request with a nil Body.
func writeRequestLineAndHeaders(buf *bytes.Buffer, req *http.Request) {
	uri := "/"
	if req.URL != nil {
		uri = req.URL.RequestURI()
	}
	fmt.Fprintf(buf, "%s %s HTTP/1.1\r\n", req.Method, uri)
	host := req.Host
	if host == "" && req.URL != nil {
		host = req.URL.Host
	}
	if host != "" {
		fmt.Fprintf(buf, "Host: %s\r\n", host)
	}
	for k, values := range req.Header {
		if strings.EqualFold(k, "Transfer-Encoding") || strings.EqualFold(k, "Content-Length") {
			continue
		}
		for _, v := range values {
			fmt.Fprintf(buf, "%s: %s\r\n", k, v)
		}
	}
	buf.WriteString("Transfer-Encoding: chunked\r\n")
	buf.WriteString("\r\n")
}

func encodeChunk(data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%x\r\n", len(data))
	buf.Write(data)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func lastChunkBytes() []byte {
	return []byte("0\r\n\r\n")
}
