package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestText_Plain(t *testing.T) {
	got, err := Text([]byte("cell biology lecture notes"), "notes.txt")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "cell biology lecture notes" {
		t.Errorf("Text = %q", got)
	}
}

func TestText_Markdown(t *testing.T) {
	got, err := Text([]byte("# Week 3\n\nOsmosis."), "week3.md")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "Osmosis") {
		t.Errorf("Text = %q, want to contain Osmosis", got)
	}
}

func TestText_InvalidUTF8(t *testing.T) {
	got, err := Text([]byte{0x68, 0x69, 0xff, 0xfe}, "weird.txt")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.HasPrefix(got, "hi") {
		t.Errorf("Text = %q, want prefix hi", got)
	}
	if !strings.Contains(got, "�") {
		t.Errorf("Text = %q, want replacement character", got)
	}
}

func TestText_HTML(t *testing.T) {
	page := `<html><head><style>p{color:red}</style><script>alert(1)</script></head>
<body><h1>Photosynthesis</h1><p>Light reactions occur in the thylakoid.</p></body></html>`
	got, err := Text([]byte(page), "bio.html")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "Photosynthesis") || !strings.Contains(got, "thylakoid") {
		t.Errorf("Text = %q, missing body text", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "color:red") {
		t.Errorf("Text = %q, script/style leaked into output", got)
	}
}

func TestText_Unsupported(t *testing.T) {
	_, err := Text([]byte{0x50, 0x4b}, "deck.pptx")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestText_BadPDF(t *testing.T) {
	if _, err := Text([]byte("not a pdf"), "broken.pdf"); err == nil {
		t.Error("Text on malformed PDF should error")
	}
}
