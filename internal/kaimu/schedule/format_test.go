package schedule

import (
	"strings"
	"testing"
)

func TestIsGroupSelection(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"A조", "A", true},
		{"b 그룹", "B", true},
		{" C조 ", "C", true},
		{"Ａ조", "A", true},
		{"AB조", "", false},
		{"조깅 갈 사람?", "", false},
		{"A", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := IsGroupSelection(tc.text)
			if got != tc.want || ok != tc.ok {
				t.Errorf("IsGroupSelection(%q) = %q, %v; want %q, %v", tc.text, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestFormatGroup(t *testing.T) {
	doc := Parse(sampleNotice)
	if doc == nil {
		t.Fatal("Parse returned nil")
	}

	out, ok := FormatGroup(doc, "a")
	if !ok {
		t.Fatal("FormatGroup(A) not found")
	}
	for _, want := range []string{"34주차", "A조", "SUB 3:00", "1200m x 6회", "6바퀴", "03:50/km", "46초", "03:45/km", "45초", "휴식: 200m 조깅"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatGroup(A) missing %q in:\n%s", want, out)
		}
	}

	if _, ok := FormatGroup(doc, "Z"); ok {
		t.Error("FormatGroup(Z) = ok, want not found")
	}
	if _, ok := FormatGroup(nil, "A"); ok {
		t.Error("FormatGroup(nil) = ok, want not found")
	}
}
