package prompt

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLine(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"hunter2\n", "hunter2", nil},
		{"hunter2\r\n", "hunter2", nil},
		{"hunter2", "hunter2", nil},
		{"pass with spaces \nnext line\n", "pass with spaces ", nil},
		{"\n", "", ErrEmpty},
		{"", "", ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Line(strings.NewReader(tt.in))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Line(%q) error = %v; want %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Line(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func stdinFile(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestPassword_NonTerminal(t *testing.T) {
	f := stdinFile(t, "hunter2\n")

	var out strings.Builder
	got, err := Password(f, &out, "Password: ")
	if err != nil {
		t.Fatalf("Password returned error: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Password = %q; want hunter2", got)
	}
	if out.Len() != 0 {
		t.Errorf("label written for non-terminal input: %q", out.String())
	}
}

func TestReader_ConsecutivePasswords(t *testing.T) {
	r := NewReader(stdinFile(t, "wrongpass\nhunter2\n"), io.Discard)

	for _, want := range []string{"wrongpass", "hunter2"} {
		got, err := r.Password("Password: ")
		if err != nil {
			t.Fatalf("Password returned error: %v", err)
		}
		if got != want {
			t.Errorf("Password = %q; want %q", got, want)
		}
	}
	if _, err := r.Password("Password: "); !errors.Is(err, ErrEmpty) {
		t.Errorf("Password after last line error = %v; want ErrEmpty", err)
	}
}

func TestLine_SharedBuffer(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("one\ntwo\n"))
	first, _ := Line(br)
	second, err := Line(br)
	if err != nil || first != "one" || second != "two" {
		t.Errorf("Line, Line = %q, %q, %v; want one, two, nil", first, second, err)
	}
}
