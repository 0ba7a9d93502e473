package adapter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// streamScannerBuffer is the maximum size of a single SSE line.
const streamScannerBuffer = 52_428_800

// ssePayloadPrefix marks payload lines in the upstream SSE framing.
var ssePayloadPrefix = []byte("data:")

// IngestStream reads an SSE-framed byte stream and feeds every decodable
// payload whose response field is present to ProcessChunk. Lines that fail to
// parse are skipped silently; the stream stays alive through upstream framing
// jitter. The scanner keeps a carry buffer across reads, so a payload line
// split over two read boundaries is reassembled rather than dropped.
// Returns only source-level I/O failures.
func IngestStream(r io.Reader, state *TurnState, emit EmitFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, streamScannerBuffer)
	for scanner.Scan() {
		payload := ssePayload(scanner.Bytes())
		if len(payload) == 0 || !gjson.ValidBytes(payload) {
			continue
		}
		fragment := gjson.GetBytes(payload, "response")
		if !fragment.Exists() {
			continue
		}
		ProcessChunk(fragment, state, emit)
	}
	return scanner.Err()
}

// IngestBuffered feeds one complete response document to ProcessChunk. The
// response sub-object is the payload when present, otherwise the document
// itself. The result is equivalent to streaming the same logical content,
// modulo incremental timing.
func IngestBuffered(body []byte, state *TurnState, emit EmitFunc) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("adapter: response body is not valid JSON")
	}
	fragment := gjson.ParseBytes(body)
	if responseResult := fragment.Get("response"); responseResult.Exists() {
		fragment = responseResult
	}
	ProcessChunk(fragment, state, emit)
	return nil
}

// ssePayload strips the data: prefix from one SSE line, returning nil for
// non-payload lines.
func ssePayload(line []byte) []byte {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, ssePayloadPrefix) {
		return nil
	}
	return bytes.TrimSpace(line[len(ssePayloadPrefix):])
}
