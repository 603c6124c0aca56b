package answer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const systemPreamble = "You are a helpful assistant that answers questions " +
	"using only the provided context. Cite the source labels of the passages " +
	"you rely on. If the context does not contain the answer, say so plainly " +
	"instead of guessing."

const noContextPreamble = "You are a helpful assistant. No relevant material " +
	"was found in the knowledge base for this question. Tell the user that " +
	"nothing relevant is indexed and do not invent an answer."

// BuildPrompt assembles the generation prompt from retrieved chunks, prior
// session history, and the current question. It is a pure function of its
// inputs: same chunks, history, and question always yield the same prompt.
func BuildPrompt(chunks []domain.ScoredChunk, history []domain.Turn, question string) domain.Prompt {
	var sb strings.Builder

	if len(chunks) == 0 {
		sb.WriteString(noContextPreamble)
	} else {
		sb.WriteString(systemPreamble)
		sb.WriteString("\n\nContext:\n")
		for _, sc := range chunks {
			sb.WriteString("\n")
			sb.WriteString(sourceLabel(sc.Chunk))
			sb.WriteString("\n")
			sb.WriteString(sc.Chunk.Text())
			sb.WriteString("\n")
		}
	}

	messages := make([]domain.Message, 0, len(history)+1)
	for _, t := range history {
		messages = append(messages, domain.Message{Role: t.Role(), Text: t.Text()})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Text: question})

	return domain.Prompt{
		System:   sb.String(),
		Messages: messages,
	}
}

func sourceLabel(c domain.Chunk) string {
	if h := c.Heading(); h != "" {
		return fmt.Sprintf("[Source: %s (%s)]", c.ID(), h)
	}
	return fmt.Sprintf("[Source: %s]", c.ID())
}
