package types

import "github.com/cloudwego/eino/schema"

// Trimmer selects the part of a history that is shown to a language model.
// Stored history is never trimmed.
type Trimmer interface {
	Trim(history []Turn) []Turn
}

// KeepLastNTrimmer keeps the last N turns. When N <= 0 it keeps everything.
type KeepLastNTrimmer struct {
	N int
}

func (t KeepLastNTrimmer) Trim(history []Turn) []Turn {
	if t.N <= 0 || len(history) <= t.N {
		return history
	}
	return history[len(history)-t.N:]
}

// ToMessages converts turns to chat messages, user turns as user messages and
// agent turns as assistant messages.
func ToMessages(history []Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		if turn.Text == "" {
			continue
		}
		switch turn.Speaker {
		case SpeakerAgent:
			out = append(out, schema.AssistantMessage(turn.Text, nil))
		default:
			out = append(out, schema.UserMessage(turn.Text))
		}
	}
	return out
}
