package files

import (
	"os"
	"strings"
	"testing"
)

func TestSaveAndPath(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	doc, err := s.Save("Quarterly Report (final).pdf", "application/pdf", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if doc.OriginalName != "Quarterly Report (final).pdf" {
		t.Fatalf("originalName = %s", doc.OriginalName)
	}
	if doc.Size != 5 {
		t.Fatalf("size = %d, want 5", doc.Size)
	}
	if !strings.HasPrefix(doc.URL, "/uploads/") {
		t.Fatalf("url = %s", doc.URL)
	}
	if strings.ContainsAny(doc.FileName, "() ") {
		t.Fatalf("key not sanitized: %s", doc.FileName)
	}

	path, err := s.Path(doc.FileName)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Fatalf("stored content = %q (err %v)", data, err)
	}
}

func TestSaveStripsDirectories(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	doc, err := s.Save("../../etc/passwd", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if strings.Contains(doc.FileName, "/") || strings.Contains(doc.FileName, "..") {
		t.Fatalf("key leaks path segments: %s", doc.FileName)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	for _, key := range []string{"", "../secret", "a/b", `a\b`} {
		if _, err := s.Path(key); err == nil {
			t.Fatalf("expected rejection for %q", key)
		}
	}
}
