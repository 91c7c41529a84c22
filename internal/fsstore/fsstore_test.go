package fsstore

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteThenReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	in := doc{Name: "ana", Count: 3}
	if err := WriteJSONAtomic(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out doc
	ok, err := ReadJSON(path, &out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatal("expected file to exist")
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	var out doc
	ok, err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ok {
		t.Error("missing file should report ok=false")
	}
}

func TestReadJSONEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var out doc
	ok, err := ReadJSON(path, &out)
	if err != nil || ok {
		t.Errorf("empty file: ok=%v err=%v, want false,nil", ok, err)
	}
}

func TestWriteJSONAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := WriteJSONAtomic(path, doc{Name: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.json" {
		t.Errorf("dir entries = %v", entries)
	}
}

func TestWriteJSONAtomicRejectsEmptyPath(t *testing.T) {
	if err := WriteJSONAtomic("  ", doc{}); err == nil {
		t.Fatal("expected invalid path error")
	}
}

func TestSafeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"5491100000001", "5491100000001"},
		{"user@host/../x", "user_host_.._x"},
		{"", "_"},
	}
	for _, c := range cases {
		if got := SafeName(c.in); got != c.want {
			t.Errorf("SafeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
