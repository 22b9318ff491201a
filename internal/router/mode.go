package router

import "fmt"

// Mode selects the answering style for a query.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeTutor Mode = "tutor"
	ModeNotes Mode = "notes"
	ModeQuiz  Mode = "quiz"
)

// ParseMode validates a mode string. Empty input defaults to chat.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChat, ModeTutor, ModeNotes, ModeQuiz:
		return Mode(s), nil
	case "":
		return ModeChat, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}
