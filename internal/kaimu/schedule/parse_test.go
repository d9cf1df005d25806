package schedule

import (
	"strings"
	"testing"
)

const sampleNotice = `34주차 8/18-8/24 훈련 공지
이번 주도 화이팅입니다! 웜업 2km 조깅으로 몸을 풀고 인터벌 본훈련 후 쿨다운 1km 하겠습니다.

풀코스
ASUB 3:00
1200 x 6 @ 03:50~03:45 /km
휴식: 200m 조깅

B SUB 3:30
1200 x 5~6 @ 04:10 /km

C SUB 4:00
800 x 4 @ 04:30 /km
휴식: 90초

하프
D SUB 1:50
800 x 4 @ 04:50 /km
`

func TestIsScheduleLike(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"real notice", sampleNotice, true},
		{"short with keywords", "주차 풀코스 인터벌", false},
		{
			"long with two keywords",
			"오늘 훈련 끝나고 다 같이 조깅이나 할까요? " + strings.Repeat("날씨가 너무 좋아서 오래 달리고 싶은 날이에요. ", 5),
			false,
		},
		{
			"long with three keywords",
			"이번 주차 훈련은 인터벌 위주입니다. " + strings.Repeat("다들 준비 잘 해오세요. 부상 조심하시고요. ", 5),
			true,
		},
		{"plain chat", "내일 몇 시에 모여요?", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsScheduleLike(tc.text); got != tc.want {
				t.Errorf("IsScheduleLike = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParse_FullNotice(t *testing.T) {
	doc := Parse(sampleNotice)
	if doc == nil {
		t.Fatal("Parse returned nil")
	}
	if doc.WeekLabel != "34주차" {
		t.Errorf("WeekLabel = %q, want 34주차", doc.WeekLabel)
	}
	if doc.Period != "8/18-8/24" {
		t.Errorf("Period = %q, want 8/18-8/24", doc.Period)
	}
	if len(doc.Groups) != 3 {
		t.Fatalf("got %d groups, want 3 (half-marathon section must be excluded)", len(doc.Groups))
	}

	a := doc.Groups[0]
	if a.Name != "A" || a.Target != "SUB 3:00" {
		t.Errorf("group A header = %q %q", a.Name, a.Target)
	}
	if a.Distance != 1200 || a.Reps != "6" || a.LapsPerRep != 6 {
		t.Errorf("group A interval = %d x %s, lapsPerRep %d", a.Distance, a.Reps, a.LapsPerRep)
	}
	wantPaces := []string{"03:50", "03:45"}
	wantLaps := []int{46, 45}
	if len(a.Paces) != 2 || a.Paces[0] != wantPaces[0] || a.Paces[1] != wantPaces[1] {
		t.Errorf("group A paces = %v, want %v", a.Paces, wantPaces)
	}
	if len(a.LapSeconds) != 2 || a.LapSeconds[0] != wantLaps[0] || a.LapSeconds[1] != wantLaps[1] {
		t.Errorf("group A laps = %v, want %v", a.LapSeconds, wantLaps)
	}
	if a.Rest != "200m 조깅" {
		t.Errorf("group A rest = %q", a.Rest)
	}

	b := doc.Groups[1]
	if b.Name != "B" || b.Reps != "5~6" {
		t.Errorf("group B = %q reps %q", b.Name, b.Reps)
	}
	if len(b.LapSeconds) != 1 || b.LapSeconds[0] != 50 {
		t.Errorf("group B laps = %v, want [50]", b.LapSeconds)
	}
	if b.Rest != "별도 공지" {
		t.Errorf("group B rest = %q, want default", b.Rest)
	}

	c := doc.Groups[2]
	if c.Distance != 800 || c.LapsPerRep != 4 {
		t.Errorf("group C = %dm, lapsPerRep %d", c.Distance, c.LapsPerRep)
	}
	if len(c.LapSeconds) != 1 || c.LapSeconds[0] != 54 {
		t.Errorf("group C laps = %v, want [54]", c.LapSeconds)
	}
	if c.Rest != "90초" {
		t.Errorf("group C rest = %q", c.Rest)
	}
}

func TestParse_NoFullCourseSection(t *testing.T) {
	text := `34주차 8/18-8/24
하프
B SUB 1:50
800 x 4 @ 04:50 /km`
	if doc := Parse(text); doc != nil {
		t.Fatalf("Parse = %+v, want nil without a full-course section", doc)
	}
}

func TestParse_ZeroGroupsIsFailure(t *testing.T) {
	text := `34주차 8/18-8/24
풀코스
이번 주는 자유 훈련입니다.`
	if doc := Parse(text); doc != nil {
		t.Fatalf("Parse = %+v, want nil with zero groups", doc)
	}
}

func TestParse_MissingHeaderStillParses(t *testing.T) {
	text := `풀코스
B SUB 3:30
1200 x 5 @ 04:00 /km`
	doc := Parse(text)
	if doc == nil {
		t.Fatal("Parse returned nil")
	}
	if doc.WeekLabel != "이번 주차" {
		t.Errorf("WeekLabel = %q, want placeholder", doc.WeekLabel)
	}
	if doc.Period != "" {
		t.Errorf("Period = %q, want empty", doc.Period)
	}
	if len(doc.Groups) != 1 || doc.Groups[0].LapSeconds[0] != 48 {
		t.Errorf("groups = %+v", doc.Groups)
	}
}

func TestParse_GroupWithoutIntervalIsDropped(t *testing.T) {
	text := `풀코스
A SUB 3:00
이번 주는 대회 조정 주간입니다.

B SUB 3:30
1200 x 5 @ 04:00 /km`
	doc := Parse(text)
	if doc == nil {
		t.Fatal("Parse returned nil")
	}
	if len(doc.Groups) != 1 || doc.Groups[0].Name != "B" {
		t.Fatalf("groups = %+v, want only B", doc.Groups)
	}
}

func TestParse_FullWidthLettersNormalized(t *testing.T) {
	text := `풀코스
Ｂ SUB 3:30
1200 ｘ 5 ＠ 04:00 /km`
	doc := Parse(text)
	if doc == nil {
		t.Fatal("Parse returned nil")
	}
	if len(doc.Groups) != 1 || doc.Groups[0].Name != "B" {
		t.Fatalf("groups = %+v, want full-width B normalized", doc.Groups)
	}
}

func TestParsePace(t *testing.T) {
	cases := []struct {
		tok      string
		wantPace string
		wantSecs int
		ok       bool
	}{
		{"03:50", "03:50", 230, true},
		{"4:00", "04:00", 240, true},
		{"03:5!", "03:51", 231, true},
		{"!3:50", "13:50", 830, true},
		{"03:70", "", 0, false},
		{"0350", "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.tok, func(t *testing.T) {
			pace, secs, ok := parsePace(tc.tok)
			if ok != tc.ok || pace != tc.wantPace || secs != tc.wantSecs {
				t.Errorf("parsePace(%q) = %q, %d, %v; want %q, %d, %v",
					tc.tok, pace, secs, ok, tc.wantPace, tc.wantSecs, tc.ok)
			}
		})
	}
}

func TestLapSeconds_RoundTrip(t *testing.T) {
	// Deriving pace back from the lap time must land within rounding
	// tolerance of the original.
	for paceSecs := 180; paceSecs <= 420; paceSecs++ {
		lap := lapSeconds(paceSecs)
		back := lap * 5
		if diff := back - paceSecs; diff < -2 || diff > 2 {
			t.Fatalf("paceSecs %d: lap %d rederives %d, off by %d", paceSecs, lap, back, diff)
		}
	}
	if got := lapSeconds(240); got != 48 {
		t.Errorf("lapSeconds(240) = %d, want 48", got)
	}
}
