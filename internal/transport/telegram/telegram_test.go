package telegram

import (
	"strings"
	"testing"

	logx "publishbot/pkg/logx"
)

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatalf("New() with empty token = nil error")
	}
}

func TestSplitTextShort(t *testing.T) {
	got := splitText("hello", 10, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %q", got)
	}
}

func TestSplitTextPrefersNewline(t *testing.T) {
	s := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitText(s, 10, "")
	if len(got) != 2 {
		t.Fatalf("chunks = %q, want 2", got)
	}
	if got[0] != "aaaaaa" || got[1] != "bbbbbb" {
		t.Fatalf("chunks = %q", got)
	}
}

func TestSplitTextAvoidsHTMLTags(t *testing.T) {
	s := "abcdef<b>xyz</b>"
	got := splitText(s, 8, "HTML")
	if got[0] != "abcdef" {
		t.Fatalf("first chunk = %q, want abcdef", got[0])
	}
	if strings.Join(got, "") != s {
		t.Fatalf("chunks %q lose text", got)
	}
	for _, c := range got {
		if len([]rune(c)) > 8 {
			t.Fatalf("chunk %q longer than limit", c)
		}
	}
}
