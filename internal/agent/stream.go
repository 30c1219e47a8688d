package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Event type constants for the runtime's streaming JSON output.
const (
	EventTypeInit      = "init"
	EventTypeSystem    = "system"
	EventTypeAssistant = "assistant"
	EventTypeResult    = "result"
)

// TokenUsage is the token accounting block inside a result event.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent is the top-level envelope for every JSON line the runtime
// emits with --output-format stream-json. Type determines which payload
// fields are populated.
type StreamEvent struct {
	// Type is one of the EventType* constants.
	Type string `json:"type"`

	// Subtype provides further classification within a type.
	Subtype string `json:"subtype,omitempty"`

	// SessionID is the session identifier (present in init events).
	SessionID string `json:"session_id,omitempty"`

	// Model is the model identifier (present in init events).
	Model string `json:"model,omitempty"`

	// Message holds text content for system and assistant events.
	Message string `json:"message,omitempty"`

	// Result is the final output text (result events).
	Result string `json:"result,omitempty"`

	// Usage is the token accounting block (result events).
	Usage *TokenUsage `json:"usage,omitempty"`

	// IsError indicates a result event representing a failure.
	IsError bool `json:"is_error,omitempty"`

	// NumTurns is the number of conversation turns (result events).
	NumTurns int `json:"num_turns,omitempty"`
}

// ParseStreamEvent unmarshals a single JSON line into a StreamEvent.
// Unknown fields are silently ignored (permissive parsing).
func ParseStreamEvent(data []byte) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return StreamEvent{}, err
	}
	return ev, nil
}

// streamOutcome is the accumulated view of one call's event stream.
type streamOutcome struct {
	Text      string
	SessionID string
	Model     string
	TokensIn  int
	TokensOut int
	IsError   bool
	ErrorText string
	sawResult bool
}

// collectStream reads newline-delimited JSON events until EOF. Malformed
// lines are skipped so a partial stream still yields useful data; a stream
// with no result event at all is an error because usage accounting would
// be lost.
func collectStream(r io.Reader) (streamOutcome, error) {
	var out streamOutcome
	var assistantText strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := ParseStreamEvent(line)
		if err != nil {
			continue
		}
		switch ev.Type {
		case EventTypeInit:
			out.SessionID = ev.SessionID
			out.Model = ev.Model
		case EventTypeSystem:
			// Some runtimes report init data under a system/init subtype.
			if ev.Subtype == EventTypeInit {
				if ev.SessionID != "" {
					out.SessionID = ev.SessionID
				}
				if ev.Model != "" {
					out.Model = ev.Model
				}
			}
		case EventTypeAssistant:
			if ev.Message != "" {
				assistantText.WriteString(ev.Message)
				assistantText.WriteString("\n")
			}
		case EventTypeResult:
			out.sawResult = true
			out.IsError = ev.IsError
			if ev.Result != "" {
				out.Text = ev.Result
			}
			if ev.Usage != nil {
				out.TokensIn = ev.Usage.InputTokens
				out.TokensOut = ev.Usage.OutputTokens
			}
			if ev.IsError && ev.Message != "" {
				out.ErrorText = ev.Message
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read event stream: %w", err)
	}

	if out.Text == "" {
		out.Text = strings.TrimRight(assistantText.String(), "\n")
	}
	if !out.sawResult {
		return out, fmt.Errorf("event stream ended without a result event")
	}
	return out, nil
}
