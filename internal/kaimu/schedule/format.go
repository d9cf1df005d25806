package schedule

import (
	"fmt"
	"regexp"
	"strings"
)

// selectionRe matches the "show my group" command shapes runners type:
// "A조", "b 그룹". Full-width letters are folded before matching.
var selectionRe = regexp.MustCompile(`^\s*([A-Za-z])\s*(?:조|그룹)\s*$`)

// IsGroupSelection reports whether text is a group-selection command and
// returns the upper-cased group letter when it is.
func IsGroupSelection(text string) (string, bool) {
	m := selectionRe.FindStringSubmatch(normalizeWidth(text))
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// FormatGroup renders one group's weekly summary, or ok=false when the
// letter is not in the document.
func FormatGroup(doc *Document, letter string) (string, bool) {
	if doc == nil {
		return "", false
	}
	letter = strings.ToUpper(letter)
	for _, g := range doc.Groups {
		if g.Name == letter {
			return formatGroup(doc.WeekLabel, g), true
		}
	}
	return "", false
}

func formatGroup(weekLabel string, g Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏃 %s %s조 (%s)\n", weekLabel, g.Name, g.Target)
	fmt.Fprintf(&b, "%dm x %s회 (한 개당 %d바퀴)\n", g.Distance, g.Reps, g.LapsPerRep)
	for i, pace := range g.Paces {
		fmt.Fprintf(&b, "페이스 %s/km → 200m %d초\n", pace, g.LapSeconds[i])
	}
	fmt.Fprintf(&b, "휴식: %s", g.Rest)
	return b.String()
}
