package schedule

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
)

// defaultWeekLabel stands in when the notice has no "N주차" header.
const defaultWeekLabel = "이번 주차"

// defaultRest stands in when a group carries no 휴식 line.
const defaultRest = "별도 공지"

var (
	// weekRe matches the notice header, e.g. "34주차 8/18-8/24".
	weekRe = regexp.MustCompile(`(\d+)\s*주차\s*(\d{1,2}/\d{1,2})\s*[-~]\s*(\d{1,2}/\d{1,2})`)

	// fullCourseRe marks the start of the full-marathon class block.
	fullCourseRe = regexp.MustCompile(`풀\s*코스`)

	// otherClassRe marks the start of the next class block. Only the
	// full-marathon class is parsed; half and 10K sections bound it.
	otherClassRe = regexp.MustCompile(`하프|10\s*[Kk]`)

	// headerRe matches a group header line like "B SUB 3:30" after
	// full-width normalization.
	headerRe = regexp.MustCompile(`(?m)^[ \t]*([A-Za-z])[ \t]+(SUB[ \t]*[0-9:~!.\-]+)`)

	// leadingARe tolerates the A group's header typed without the
	// separating space ("ASUB 3:00"), a shape the crew's notices use.
	leadingARe = regexp.MustCompile(`(?m)^[ \t]*[Aa](SUB[ \t]*[0-9:~!.\-]+)`)

	// intervalRe matches one interval prescription, e.g.
	// "1200 x 5~6 @ 03:50~03:45 /km".
	intervalRe = regexp.MustCompile(`(800|1200)\s*[xX×]\s*(\d+)(?:\s*~\s*(\d+))?\s*@\s*([0-9!]{1,2}:[0-9!]{2})(?:\s*~\s*([0-9!]{1,2}:[0-9!]{2}))?\s*/\s*[Kk][Mm]`)

	// restRe matches a recovery line like "휴식: 400m 조깅".
	restRe = regexp.MustCompile(`휴식\s*[:：]?\s*([^\n]+)`)

	paceRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// Parse extracts a training document from one pasted notice. A nil return
// means the text is not a usable notice and should be treated as ordinary
// chat; the caller decides that, this function only reports it.
func Parse(text string) *Document {
	text = normalizeWidth(text)

	doc := &Document{WeekLabel: defaultWeekLabel}
	if m := weekRe.FindStringSubmatch(text); m != nil {
		doc.WeekLabel = m[1] + "주차"
		doc.Period = m[2] + "-" + m[3]
	}

	block, ok := fullCourseBlock(text)
	if !ok {
		return nil
	}

	for _, h := range groupHeaders(block) {
		g, ok := parseGroup(h.name, h.target, h.span)
		if !ok {
			slog.Debug("schedule: group dropped, no interval spec", "group", h.name)
			continue
		}
		doc.Groups = append(doc.Groups, g)
	}

	if len(doc.Groups) == 0 {
		return nil
	}
	return doc
}

// fullCourseBlock slices the text between the 풀코스 marker and the next
// class marker (하프, 10K) or end of text.
func fullCourseBlock(text string) (string, bool) {
	loc := fullCourseRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	block := text[loc[1]:]
	if next := otherClassRe.FindStringIndex(block); next != nil {
		block = block[:next[0]]
	}
	return block, true
}

type header struct {
	name   string
	target string
	// span runs from this header to the next one (or end of block).
	span string
}

// groupHeaders collects group headers in order of first appearance. The A
// group's no-space shape is scanned separately because its header differs
// from the general one.
func groupHeaders(block string) []header {
	type hit struct {
		pos    int
		name   string
		target string
	}
	var hits []hit
	seen := make(map[string]bool)

	for _, m := range headerRe.FindAllStringSubmatchIndex(block, -1) {
		name := strings.ToUpper(block[m[2]:m[3]])
		if seen[name] {
			continue
		}
		seen[name] = true
		hits = append(hits, hit{pos: m[0], name: name, target: tidyTarget(block[m[4]:m[5]])})
	}
	if !seen["A"] {
		if m := leadingARe.FindStringSubmatchIndex(block); m != nil {
			hits = append(hits, hit{pos: m[0], name: "A", target: tidyTarget(block[m[2]:m[3]])})
		}
	}
	if len(hits) == 0 {
		return nil
	}

	// Restore document order; the special-cased A header may have been
	// appended out of position.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	headers := make([]header, len(hits))
	for i, h := range hits {
		end := len(block)
		if i+1 < len(hits) {
			end = hits[i+1].pos
		}
		headers[i] = header{name: h.name, target: h.target, span: block[h.pos:end]}
	}
	return headers
}

// tidyTarget normalizes a captured goal tag to the "SUB X:XX" shape.
func tidyTarget(raw string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(raw, "SUB"))
	if rest == "" {
		return "SUB"
	}
	return "SUB " + rest
}

// parseGroup extracts the single interval prescription from one group's
// span. ok is false when the span holds no usable interval, which drops the
// group silently.
func parseGroup(name, target, span string) (Group, bool) {
	m := intervalRe.FindStringSubmatch(span)
	if m == nil {
		return Group{}, false
	}

	distance := 1200
	if m[1] == "800" {
		distance = 800
	}

	reps := m[2]
	if m[3] != "" {
		reps += "~" + m[3]
	}

	var paces []string
	var laps []int
	for _, tok := range []string{m[4], m[5]} {
		if tok == "" {
			continue
		}
		pace, secs, ok := parsePace(tok)
		if !ok {
			slog.Debug("schedule: pace token dropped", "group", name, "token", tok)
			continue
		}
		paces = append(paces, pace)
		laps = append(laps, lapSeconds(secs))
	}
	if len(paces) == 0 {
		return Group{}, false
	}

	rest := defaultRest
	if rm := restRe.FindStringSubmatch(span); rm != nil {
		rest = strings.TrimSpace(rm[1])
	}

	lapsPerRep := 6
	if distance == 800 {
		lapsPerRep = 4
	}

	return Group{
		Name:       name,
		Target:     target,
		Distance:   distance,
		Reps:       reps,
		Paces:      paces,
		LapSeconds: laps,
		Rest:       rest,
		LapsPerRep: lapsPerRep,
	}, true
}

// parsePace reads one "MM:SS" token, fixing the common "!" for "1" typo
// first, and returns the canonical token plus its total seconds.
func parsePace(tok string) (string, int, bool) {
	tok = strings.ReplaceAll(tok, "!", "1")
	m := paceRe.FindStringSubmatch(tok)
	if m == nil {
		return "", 0, false
	}
	var mins, secs int
	fmt.Sscanf(m[1], "%d", &mins)
	fmt.Sscanf(m[2], "%d", &secs)
	if secs >= 60 {
		return "", 0, false
	}
	return fmt.Sprintf("%02d:%02d", mins, secs), mins*60 + secs, true
}

// lapSeconds converts a per-kilometer pace to a 200m track lap time.
// One lap is a fifth of a kilometer.
func lapSeconds(paceSeconds int) int {
	return int(math.Round(float64(paceSeconds) / 5))
}

// normalizeWidth folds full-width ASCII variants (Ａ, ｘ, ＠, digits) into
// their half-width forms so one grammar covers both typing styles.
func normalizeWidth(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 0xFF01 && r <= 0xFF5E {
			return r - 0xFEE0
		}
		return r
	}, s)
}
