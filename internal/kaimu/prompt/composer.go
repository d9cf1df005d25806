// Package prompt builds the grounding prompt sent to the generation
// providers and holds the persona configuration that accompanies it.
//
// Compose is a pure function: the same request and clock always produce the
// same string, so the exact prompt for any exchange can be reconstructed in
// tests. The composer never performs I/O and never touches the conversation
// store: history comes in as a snapshot and grounding context goes out in
// its own delimited block so it cannot leak back into persisted dialogue.
package prompt

import (
	"strings"
	"time"
)

// weekdayNames maps time.Weekday to the localized weekday name used in the
// leading time sentence.
var weekdayNames = [7]string{
	"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일",
}

// historyHeader labels the transcript of previous relevant exchanges.
const historyHeader = "[이전 대화]"

// groundingHeader labels the retrieved factual block appended after the user
// message. Everything under it is reference material for this reply only.
const groundingHeader = "[참고 자료]"

// HistoryTurn is one prior utterance, already trimmed to the memory bound.
type HistoryTurn struct {
	// FromUser is true when the human wrote the turn.
	FromUser bool
	// Content is the turn text.
	Content string
}

// Request carries everything Compose needs for one prompt.
type Request struct {
	// Message is the literal new user message.
	Message string
	// DisplayName is the best-effort human-readable name of the user; the
	// caller substitutes a generic placeholder on lookup failure.
	DisplayName string
	// History is the prior dialogue in chronological order. May be empty.
	History []HistoryTurn
	// Grounding is an optional pre-formatted factual block (venue listing,
	// activity summary, weather line). Appended verbatim, never persisted.
	Grounding string
	// Location is the reference timezone for the time sentence.
	// Defaults to KST when nil.
	Location *time.Location
}

// Compose renders the full grounding prompt for one exchange.
//
// Layout: a time-and-identity sentence, the relabeled history transcript
// (user turns become "나", model turns become "너"; the model reads the
// transcript from its own perspective), the literal new message, and the
// optional grounding block last.
func Compose(req Request, now time.Time) string {
	loc := req.Location
	if loc == nil {
		loc = time.FixedZone("KST", 9*60*60)
	}
	local := now.In(loc)

	name := req.DisplayName
	if name == "" {
		name = "러너"
	}

	var sb strings.Builder
	sb.WriteString("현재 시각은 ")
	sb.WriteString(local.Format("2006년 1월 2일 "))
	sb.WriteString(weekdayNames[local.Weekday()])
	sb.WriteString(local.Format(" 15:04"))
	sb.WriteString("입니다. 지금 대화하는 상대는 ")
	sb.WriteString(name)
	sb.WriteString("님입니다.\n")

	if len(req.History) > 0 {
		sb.WriteString("\n")
		sb.WriteString(historyHeader)
		sb.WriteString("\n")
		for _, turn := range req.History {
			if turn.FromUser {
				sb.WriteString("나: ")
			} else {
				sb.WriteString("너: ")
			}
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(req.Message)

	if req.Grounding != "" {
		sb.WriteString("\n\n")
		sb.WriteString(groundingHeader)
		sb.WriteString("\n")
		sb.WriteString(req.Grounding)
	}

	return sb.String()
}
