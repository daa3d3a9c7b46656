package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Response content types accepted from the gateway.
const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"
)

// maxFragmentLen bounds the raw body kept on MalformedResponseError.
const maxFragmentLen = 1000

var errNoJSON = errors.New("no JSON document found in event stream")

// DecodeBody turns a gateway reply into a single JSON document.
//
// Plain JSON bodies are validated and returned as-is. Event-stream bodies have
// the payloads of all "data:" lines concatenated in order; a document may be
// split across several lines, so they are joined rather than parsed one by
// one. When no data lines exist, the first balanced {...} span of the raw
// text is used instead.
func DecodeBody(contentType string, body []byte) (json.RawMessage, error) {
	var doc []byte
	if strings.Contains(strings.ToLower(contentType), ContentTypeEventStream) {
		doc = joinEventData(body)
		if len(bytes.TrimSpace(doc)) == 0 {
			span, ok := firstObjectSpan(body)
			if !ok {
				return nil, malformed(body, errNoJSON)
			}
			doc = span
		}
	} else {
		doc = body
	}

	doc = bytes.TrimSpace(doc)
	if !json.Valid(doc) {
		var probe any
		err := json.Unmarshal(doc, &probe)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return nil, malformed(body, err)
	}
	return json.RawMessage(doc), nil
}

// joinEventData concatenates the payloads of every "data:" line.
func joinEventData(body []byte) []byte {
	var buf bytes.Buffer
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSuffix(line, "\r")
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		// A single space after the colon belongs to the framing.
		payload = strings.TrimPrefix(payload, " ")
		buf.WriteString(payload)
	}
	return buf.Bytes()
}

// firstObjectSpan returns the first balanced {...} span, honoring string
// literals and escapes so braces inside strings do not count.
func firstObjectSpan(text []byte) ([]byte, bool) {
	start := bytes.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return nil, false
}

func malformed(body []byte, err error) *MalformedResponseError {
	fragment := string(body)
	if len(fragment) > maxFragmentLen {
		fragment = fragment[:maxFragmentLen]
	}
	return &MalformedResponseError{Fragment: fragment, Err: err}
}

// Envelope is a JSON-RPC 2.0 response.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`

	// Raw is the whole document, used when the reply carries no result member.
	Raw json.RawMessage `json:"-"`
}

// ParseEnvelope decodes a JSON-RPC document. A non-null error member becomes
// an *UpstreamError carrying the embedded message.
func ParseEnvelope(doc json.RawMessage) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(doc, &env); err != nil {
		// Valid JSON that is not an object (e.g. a bare array) has no envelope.
		var probe any
		if json.Unmarshal(doc, &probe) != nil {
			return nil, malformed(doc, err)
		}
		return &Envelope{Raw: doc}, nil
	}
	env.Raw = doc

	if len(env.Error) > 0 && !isJSONNull(env.Error) {
		return nil, &UpstreamError{Message: rpcErrorMessage(env.Error)}
	}
	return &env, nil
}

// Payload returns the result member, or the whole document when absent.
func (e *Envelope) Payload() json.RawMessage {
	if len(e.Result) > 0 && !isJSONNull(e.Result) {
		return e.Result
	}
	return e.Raw
}

func rpcErrorMessage(raw json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
