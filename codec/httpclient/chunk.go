package httpclient

// Chunk carries one piece of a streaming (chunked transfer-encoding)
// outbound request body. The supplemented feature named in SPEC_FULL.md
// §9.1: net/http has no first-class discrete chunk type for outbound
// streaming, so the application writes an *http.Request with a negative
// ContentLength and nil Body to emit just the request line and headers,
// followed by zero or more Chunk values, terminated by a LastChunk.
type Chunk struct {
	Data []byte
}

// LastChunk terminates a chunked outbound request body. Per spec.md §4.D's
// encoder contract, encoding a LastChunk is the point at which outstanding
// is incremented for a chunked request, mirroring HttpChunk.isLast().
type LastChunk struct{}
