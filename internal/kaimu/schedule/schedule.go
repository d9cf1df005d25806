// Package schedule parses weekly crew training notices into structured
// interval documents.
//
// The crew posts one long message per week listing pace groups for the
// full-marathon class, each with an interval prescription like
// "1200 x 6 @ 03:50/km". The parser extracts those groups and derives the
// 200m track lap time for every pace, which is what runners actually ask
// the bot for. Parsing is deliberately forgiving: hand-typed notices carry
// full-width letters, the occasional "!" where a "1" was meant, and groups
// without a quantifiable interval that week. Anything the grammar cannot
// read is dropped, never fatal.
package schedule

// Document is one parsed weekly notice.
type Document struct {
	// WeekLabel is the "N주차" tag from the notice header, or a generic
	// current-week placeholder when the header was absent.
	WeekLabel string `json:"weekLabel"`
	// Period is the "MM/DD-MM/DD" date-range token. Empty when the notice
	// had no parseable header; such documents cannot be looked up by date.
	Period string `json:"period,omitempty"`
	// Groups are the pace groups in order of first appearance.
	Groups []Group `json:"groups"`
}

// Group is one pace group's interval prescription for the week.
type Group struct {
	// Name is the single-letter group identifier, normalized to upper-case
	// half-width.
	Name string `json:"name"`
	// Target is the group's goal-time tag, e.g. "SUB 3:30".
	Target string `json:"target"`
	// Distance is the interval rep distance in meters: 800 or 1200.
	Distance int `json:"distance"`
	// Reps is the prescribed repetition count, possibly a range ("5~6").
	Reps string `json:"reps"`
	// Paces are the prescribed paces as "MM:SS" per-kilometer strings.
	Paces []string `json:"paces"`
	// LapSeconds holds the 200m lap time for each pace, index-aligned
	// with Paces.
	LapSeconds []int `json:"lapSeconds"`
	// Rest describes the recovery between reps, default "별도 공지".
	Rest string `json:"rest"`
	// LapsPerRep is 6 for 1200m reps and 4 for 800m reps.
	LapsPerRep int `json:"lapsPerRep"`
}
