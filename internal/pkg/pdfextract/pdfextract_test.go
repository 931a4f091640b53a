package pdfextract

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	in := "  Clear   aligners \r\n\r\n\r\n\tstraighten teeth.\n\n"
	want := "Clear aligners\n\nstraighten teeth."
	if got := Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestExtractTextEmptyAndInvalid(t *testing.T) {
	got, err := ExtractText(bytes.NewReader(nil))
	if err != nil || got != "" {
		t.Errorf("empty: %q %v", got, err)
	}
	if _, err := ExtractText(strings.NewReader("not a pdf")); err == nil {
		t.Error("expected error for non-pdf input")
	}
}

func TestExtractTextTooLarge(t *testing.T) {
	big := bytes.NewReader(make([]byte, MaxSize+1))
	if _, err := ExtractText(big); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v", err)
	}
}
