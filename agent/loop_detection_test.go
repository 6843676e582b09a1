package agent

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evanfuller/autoloop/llm"
)

func assistantTurnWithCalls(calls ...llm.ToolCall) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Assistant: &AssistantTurn{ToolCalls: calls},
	}
}

func call(name, args string) llm.ToolCall {
	return llm.ToolCall{ID: "id", Name: name, Arguments: json.RawMessage(args)}
}

func TestDetectLoopRepeatedSingleCall(t *testing.T) {
	var history []Turn
	for i := 0; i < 10; i++ {
		history = append(history, assistantTurnWithCalls(call("shell", `{"command":"ls"}`)))
	}
	assert.True(t, DetectLoop(history, 10))
}

func TestDetectLoopAlternatingPair(t *testing.T) {
	var history []Turn
	for i := 0; i < 5; i++ {
		history = append(history,
			assistantTurnWithCalls(call("read_file", `{"file_path":"a.go"}`)),
			assistantTurnWithCalls(call("edit_file", `{"file_path":"a.go","old_string":"x","new_string":"y"}`)),
		)
	}
	assert.True(t, DetectLoop(history, 10))
}

func TestDetectLoopVariedCalls(t *testing.T) {
	var history []Turn
	for i := 0; i < 10; i++ {
		history = append(history, assistantTurnWithCalls(
			call("shell", fmt.Sprintf(`{"command":"go test ./pkg%d"}`, i))))
	}
	assert.False(t, DetectLoop(history, 10))
}

func TestDetectLoopSameToolDifferentArguments(t *testing.T) {
	var history []Turn
	for i := 0; i < 10; i++ {
		history = append(history, assistantTurnWithCalls(
			call("read_file", fmt.Sprintf(`{"file_path":"file%d.go"}`, i))))
	}
	assert.False(t, DetectLoop(history, 10))
}

func TestDetectLoopInsufficientHistory(t *testing.T) {
	history := []Turn{
		assistantTurnWithCalls(call("shell", `{"command":"ls"}`)),
		assistantTurnWithCalls(call("shell", `{"command":"ls"}`)),
	}
	assert.False(t, DetectLoop(history, 10))
}

func TestDetectLoopIgnoresNonAssistantTurns(t *testing.T) {
	var history []Turn
	for i := 0; i < 10; i++ {
		history = append(history,
			assistantTurnWithCalls(call("shell", `{"command":"ls"}`)),
			newToolResultsTurn([]llm.ToolResult{{ToolCallID: "id", Content: "output"}}),
		)
	}
	assert.True(t, DetectLoop(history, 10))
}
