// Package prompt merges retrieved context, conversation history, and the
// new question into a bounded generation request.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ragkit/ragserver/internal/index"
	"github.com/ragkit/ragserver/internal/session"
)

const (
	groundedSystem = "You are a helpful assistant. Answer the question using the " +
		"documentation excerpts below. If the excerpts do not contain the answer, say so " +
		"instead of guessing."
	ungroundedSystem = "You are a helpful assistant. No relevant documentation was found " +
		"for this question; answer conversationally from general knowledge."
)

// Turn is one prior conversational exchange carried into the prompt.
type Turn struct {
	Role session.Role
	Text string
}

// Prompt is a fully assembled generation request. Included lists exactly the
// chunks whose text made it into the prompt, in ranking order; attribution
// must come from this list, not the retriever's full candidate set.
type Prompt struct {
	System   string
	Turns    []Turn
	Question string
	Included []index.Scored
	Grounded bool
}

// Builder assembles prompts within a character budget (roughly 4 characters
// per token). The question is never dropped; retrieved context is packed
// highest-similarity-first; history is packed most-recent-first into what
// remains and can never eat into the context reserve.
type Builder struct {
	charBudget   int
	contextFloor int
}

// NewBuilder creates a Builder with the given budget and context floor, both
// in characters.
func NewBuilder(charBudget, contextFloor int) *Builder {
	if charBudget <= 0 {
		charBudget = 12000
	}
	if contextFloor < 0 || contextFloor > charBudget {
		contextFloor = charBudget / 8
	}
	return &Builder{charBudget: charBudget, contextFloor: contextFloor}
}

// Build assembles the prompt. chunks come ordered by descending similarity;
// history comes in chronological order. An empty chunk list produces an
// ungrounded conversational prompt.
func (b *Builder) Build(question string, chunks []index.Scored, history []session.Message) Prompt {
	p := Prompt{Question: question}

	used := len(question)

	if len(chunks) == 0 {
		p.System = ungroundedSystem
		used += len(p.System)
	} else {
		p.Grounded = true
		p.System = groundedSystem
		used += len(p.System)

		var ctx strings.Builder
		for _, c := range chunks {
			block := renderChunk(len(p.Included)+1, c)
			if used+ctx.Len()+len(block) > b.charBudget {
				break
			}
			ctx.WriteString(block)
			p.Included = append(p.Included, c)
		}
		if len(p.Included) == 0 {
			// Budget too tight for even one excerpt; fall back to an
			// ungrounded prompt rather than citing nothing.
			p.Grounded = false
			p.System = ungroundedSystem
			used = len(question) + len(p.System)
		} else {
			p.System += "\n\nDocumentation excerpts:\n" + ctx.String()
			used += len("\n\nDocumentation excerpts:\n") + ctx.Len()
		}
	}

	// History fills the remainder, most recent first, but the context
	// reserve stays untouched even when context used less than the floor.
	contextReserve := used
	if p.Grounded && contextReserve < b.contextFloor {
		contextReserve = b.contextFloor
	}
	historyBudget := b.charBudget - contextReserve

	var kept []Turn
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		cost := len(msg.Text)
		if cost > historyBudget {
			break
		}
		historyBudget -= cost
		kept = append(kept, Turn{Role: msg.Role, Text: msg.Text})
	}
	// kept is newest-first; the prompt wants chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	p.Turns = kept

	return p
}

func renderChunk(n int, c index.Scored) string {
	if c.Chunk.Section != "" {
		return fmt.Sprintf("[%d] (%s)\n%s\n\n", n, c.Chunk.Section, c.Chunk.Text)
	}
	return fmt.Sprintf("[%d]\n%s\n\n", n, c.Chunk.Text)
}
