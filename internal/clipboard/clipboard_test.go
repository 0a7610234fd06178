package clipboard

import (
	"errors"
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	nl := lineEnding
	cases := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b", "a b"},
		{"one\r\ntwo\rthree\nfour", "one" + nl + "two" + nl + "three" + nl + "four"},
		{"tab\tkept\x07bell", "tab\tkeptbell"},
		{"\x1b[0mcolour", "[0mcolour"},
		{"héllo wörld", "héllo wörld"},
		{"\n\n", ""},
	}
	for _, c := range cases {
		if got := CleanText(c.in); got != c.want {
			t.Errorf("CleanText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCopyRetries(t *testing.T) {
	orig := write
	defer func() { write = orig }()

	calls := 0
	write = func(s string) error {
		calls++
		if calls < 3 {
			return errors.New("locked")
		}
		if s != "text" {
			t.Errorf("unexpected clipboard content %q", s)
		}
		return nil
	}
	if err := Copy("  text\n"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestCopyGivesUp(t *testing.T) {
	orig := write
	defer func() { write = orig }()

	calls := 0
	write = func(string) error {
		calls++
		return errors.New("locked")
	}
	err := Copy("x")
	if err == nil || !strings.Contains(err.Error(), "locked") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if calls != copyAttempts {
		t.Fatalf("expected %d attempts, got %d", copyAttempts, calls)
	}
}

func TestCopySkipsEmpty(t *testing.T) {
	orig := write
	defer func() { write = orig }()
	write = func(string) error {
		t.Fatal("empty text written")
		return nil
	}
	if err := Copy(" \x00 "); err != nil {
		t.Fatal(err)
	}
}
