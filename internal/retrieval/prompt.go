package retrieval

import (
	"strings"

	"docqa-backend/internal/vectorindex"
)

const (
	// NoDocumentsAnswer is returned when the user's index has no matches.
	NoDocumentsAnswer = "I couldn't find any relevant information in your documents. Try uploading a document first or rephrasing your question."
	// FallbackAnswer is returned when the model gives nothing back or the
	// pipeline fails after validation.
	FallbackAnswer = "Sorry, I couldn't generate a response."
	// ErrorAnswer is what the chat history records for a failed turn.
	ErrorAnswer = "Sorry, I encountered an error. Please try again."
	// UnknownAnswer is the phrase the model is told to use when the context
	// does not contain the answer.
	UnknownAnswer = "I don't know based on the available documents."
)

const contextSeparator = "\n\n"

// Turn is one earlier exchange in the conversation.
type Turn struct {
	Role string
	Text string
}

// buildContext joins match texts in rank order, dropping the lowest-ranked
// matches once maxChars is exceeded. The top match is always kept. The
// default budget fits DefaultMaxTopK chunks of chunker.DefaultSize, so
// nothing is dropped unless the budget or chunk size is reconfigured.
func buildContext(matches []vectorindex.Match, maxChars int) (string, []vectorindex.Match) {
	if len(matches) == 0 {
		return "", nil
	}
	used := matches[:1]
	total := len([]rune(matches[0].Text))
	for _, m := range matches[1:] {
		n := len([]rune(m.Text)) + len(contextSeparator)
		if maxChars > 0 && total+n > maxChars {
			break
		}
		total += n
		used = matches[:len(used)+1]
	}

	texts := make([]string, len(used))
	for i, m := range used {
		texts[i] = m.Text
	}
	return strings.Join(texts, contextSeparator), used
}

// sourcesFor returns de-duplicated document tags in rank order.
func sourcesFor(matches []vectorindex.Match) []string {
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := vectorindex.ShortDocumentTag(m.DocumentID)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func buildPrompt(contextText, question string, prior []Turn) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant for question-answering on documents.\n")
	b.WriteString("Answer the question based on the context below. If you cannot find\n")
	b.WriteString("the answer in the context, just say \"" + UnknownAnswer + "\"\n\n")
	if transcript := formatTranscript(prior); transcript != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(transcript)
		b.WriteString("\n")
	}
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

func formatTranscript(prior []Turn) string {
	var b strings.Builder
	for _, t := range prior {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		label := "User"
		if strings.EqualFold(t.Role, "assistant") {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}
