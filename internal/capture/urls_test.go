package capture

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseURLList(t *testing.T) {
	input := `# reading list
https://a.example

https://b.example   later
https://a.example
   https://c.example
`
	got, err := parseURLList(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReadURLs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urls.txt")
	if err := os.WriteFile(path, []byte("https://a.example\n"), 0644); err != nil {
		t.Fatal(err)
	}
	urls, err := ReadURLs(path)
	if err != nil || len(urls) != 1 {
		t.Fatalf("ReadURLs = %v, %v", urls, err)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("# nothing\n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadURLs(empty); err == nil {
		t.Error("expected error for list without urls")
	}
	if _, err := ReadURLs(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
