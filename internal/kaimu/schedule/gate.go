package schedule

import (
	"strings"
	"unicode/utf8"
)

// minScheduleRunes is the length floor for the keyword gate. Weekly notices
// are long; ordinary chat rarely is.
const minScheduleRunes = 80

// minKeywordHits is how many distinct markers a notice must carry.
const minKeywordHits = 3

// scheduleKeywords are the markers that distinguish a training notice from
// ordinary chat. Membership is counted per distinct keyword, not per
// occurrence.
var scheduleKeywords = []string{
	"주차",
	"풀코스",
	"페이스",
	"인터벌",
	"웜업",
	"쿨다운",
	"조깅",
	"훈련",
}

// IsScheduleLike reports whether text plausibly is a weekly training
// notice: longer than the length floor and carrying at least three distinct
// schedule keywords. The double condition keeps long ordinary messages from
// triggering the parser.
func IsScheduleLike(text string) bool {
	if utf8.RuneCountInString(text) <= minScheduleRunes {
		return false
	}
	hits := 0
	for _, kw := range scheduleKeywords {
		if strings.Contains(text, kw) {
			hits++
			if hits >= minKeywordHits {
				return true
			}
		}
	}
	return false
}
