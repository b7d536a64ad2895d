package assets

import (
	"bytes"
	"testing"

	"ecoads/internal/sheets"
)

func TestLayoutYAMLMatchesDefault(t *testing.T) {
	l, err := sheets.ParseLayout(LayoutYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if l != sheets.DefaultLayout() {
		t.Fatalf("embedded layout %+v differs from default %+v", l, sheets.DefaultLayout())
	}
}

func TestHelpMarkdown(t *testing.T) {
	if !bytes.HasPrefix(HelpMarkdown, []byte("# ")) {
		t.Fatal("help must start with a heading")
	}
}
