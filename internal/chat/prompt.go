package chat

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// Fixed texts of the confirmation loop.
const (
	FollowUpQuestion = "Do you want more info?"
	RepromptText     = "Please type Yes or No. Do you want more info?"
	MoreInfoRequest  = "Yes, please give me more info."
	DeclineReply     = "Okay! What can I help you with?"
)

// Context is the per-turn material injected into the prompt. It is never
// stored in the conversation.
type Context struct {
	Retrieval *vectordb.Retrieval
	Document  *loader.Document
}

// SystemMessage renders c as the ephemeral system message.
func (c Context) SystemMessage() llm.Message {
	var context string
	var sources []string
	if c.Retrieval != nil {
		context = c.Retrieval.Context
		sources = c.Retrieval.IDs
	}
	sourceList := "None"
	if len(sources) > 0 {
		sourceList = strings.Join(sources, ", ")
	}

	var sb strings.Builder
	sb.WriteString("You have access to retrieved course document context below.\n")
	sb.WriteString("Use it to answer the user's question. If the context is not relevant or missing, say so.\n\n")
	fmt.Fprintf(&sb, "RETRIEVED CONTEXT:\n%s\n\n", context)
	fmt.Fprintf(&sb, "SOURCES (filenames): %s", sourceList)
	if c.Document != nil && c.Document.Text != "" {
		fmt.Fprintf(&sb, "\n\nUPLOADED DOCUMENT (%s):\n%s", c.Document.Name, c.Document.Text)
	}
	return llm.Message{Role: llm.RoleSystem, Content: sb.String()}
}

// AssemblePrompt returns history with the context system message inserted
// right after a leading system message, or at the front otherwise.
// history is not modified.
func AssemblePrompt(history []llm.Message, c Context) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	rest := history
	if len(history) > 0 && history[0].Role == llm.RoleSystem {
		out = append(out, history[0])
		rest = history[1:]
	}
	out = append(out, c.SystemMessage())
	return append(out, rest...)
}

// replySuffix is appended to every answer: the sources note, if any, and
// the follow-up question.
func replySuffix(sources []string) string {
	var sb strings.Builder
	if len(sources) > 0 {
		fmt.Fprintf(&sb, "\n\n(Used RAG sources: %s)", strings.Join(sources, ", "))
	}
	sb.WriteString("\n\n" + FollowUpQuestion)
	return sb.String()
}
