package router

import (
	"fmt"
	"strings"
)

const assistantIdentity = "You are StudyMate AI, a personalized learning companion for students."

// Per-mode instructions for retrieval-grounded answers.
var groundedInstructions = map[Mode]string{
	ModeChat:  "Provide a conversational, helpful response",
	ModeTutor: "Act as an educational tutor. Explain concepts clearly with examples, break down complex topics, and encourage learning",
	ModeNotes: "Create structured, well-organized notes with headings and bullet points",
	ModeQuiz:  "Generate relevant questions and explanations based on the content",
}

// Per-mode instructions for generation-only answers.
var generalInstructions = map[Mode]string{
	ModeChat:  "Engage in helpful, educational conversation. Provide well-structured responses with clear explanations.",
	ModeTutor: "Act as an expert tutor. Explain concepts step-by-step with examples and analogies, and encourage learning through detailed breakdowns.",
	ModeNotes: "Generate comprehensive, well-structured study notes with clear headings, bullet points, numbered lists, and examples.",
	ModeQuiz:  "Create educational quizzes, practice questions, and learning assessments.",
}

func instructionFor(table map[Mode]string, mode Mode) string {
	if ins, ok := table[mode]; ok {
		return ins
	}
	return table[ModeChat]
}

// groundedPrompt asks for an answer drawn from the retrieved context.
func groundedPrompt(query string, mode Mode, context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s.\n\n", assistantIdentity, instructionFor(groundedInstructions, mode))
	b.WriteString("Based on the following content from the user's study materials, answer their question:\n\n")
	fmt.Fprintf(&b, "CONTEXT FROM DOCUMENTS:\n%s\n\n", context)
	fmt.Fprintf(&b, "STUDENT'S QUESTION: %s\n\n", query)
	b.WriteString(`Please provide a comprehensive, educational response that:
1. Directly answers the question using the provided context
2. Explains concepts in simple, clear terms
3. Uses examples when helpful
4. Connects ideas to broader learning objectives

If the context doesn't fully answer the question, mention what additional information would be helpful.`)
	return b.String()
}

// conversationSection renders recent history and discussed topics for the
// generation prompts. Empty conversations render nothing.
func conversationSection(conv Conversation) string {
	if len(conv.History) == 0 && len(conv.Keywords) == 0 {
		return ""
	}
	var b strings.Builder
	if hist := conv.History; len(hist) > 0 {
		if len(hist) > historyLimit {
			hist = hist[len(hist)-historyLimit:]
		}
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, m := range hist {
			role := "StudyMate"
			if m.Role == "user" {
				role = "Student"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
		}
		b.WriteString("\n")
	}
	if kw := conv.Keywords; len(kw) > 0 {
		if len(kw) > keywordLimit {
			kw = kw[:keywordLimit]
		}
		fmt.Fprintf(&b, "TOPICS DISCUSSED: %s\n\n", strings.Join(kw, ", "))
	}
	return b.String()
}

// blendedPrompt is used when retrieved chunks scored low: the model answers
// from general knowledge but may draw on the small document context.
func blendedPrompt(query string, mode Mode, context string, conv Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", assistantIdentity, instructionFor(generalInstructions, mode))
	b.WriteString(conversationSection(conv))
	b.WriteString("The user's uploaded documents contain the excerpts below. They may or may not be relevant; use them only where they genuinely help, and answer from general knowledge otherwise.\n\n")
	fmt.Fprintf(&b, "DOCUMENT EXCERPTS:\n%s\n\n", context)
	fmt.Fprintf(&b, "QUESTION: %s\n", query)
	return b.String()
}

// generalPrompt is the generation-only path.
func generalPrompt(query string, mode Mode, conv Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", assistantIdentity, instructionFor(generalInstructions, mode))
	b.WriteString(conversationSection(conv))
	fmt.Fprintf(&b, "QUESTION: %s\n\n", query)
	b.WriteString(`FORMATTING:
- Use clear headings for main topics
- Use bullet points for lists and numbered lists for steps
- Use bold for important terms
- Include examples and analogies when helpful`)
	return b.String()
}

// notesPrompt synthesizes study notes on a topic without documents.
func notesPrompt(topic string) string {
	return fmt.Sprintf(`%s Generate comprehensive study notes on the following topic.

TOPIC: %s

Structure the notes as: overview, key concepts with definitions, examples, applications, and a short summary of takeaways. Use headings and bullet points so the notes are easy to review.`, assistantIdentity, topic)
}

// quizPrompt synthesizes a quiz on a topic without documents.
func quizPrompt(topic string) string {
	return fmt.Sprintf(`%s Generate a comprehensive quiz based on: %s

Create 5-10 questions with:
1. Multiple choice questions with 4 options each
2. Clear explanations for correct answers
3. Difficulty levels (easy, medium, hard)
4. Learning objectives for each question

Format as an interactive quiz that helps students learn.`, assistantIdentity, topic)
}
