package domain

import "testing"

func TestParseHandle(t *testing.T) {
	cases := []struct {
		in   string
		want ModelHandle
	}{
		{"tinyllama", ModelHandle{Name: "tinyllama"}},
		{"cortexso/tinyllama", ModelHandle{Owner: "cortexso", Repo: "tinyllama"}},
		{"cortexso/tinyllama:1b-gguf", ModelHandle{Owner: "cortexso", Repo: "tinyllama", Branch: "1b-gguf"}},
	}
	for _, c := range cases {
		got := ParseHandle(c.in)
		if got != c.want {
			t.Errorf("ParseHandle(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestFileStem(t *testing.T) {
	cases := []struct {
		h    ModelHandle
		want string
	}{
		{ModelHandle{Owner: "cortexso", Repo: "tinyllama"}, "tinyllama"},
		{ModelHandle{Owner: "cortexso", Repo: "tinyllama", Branch: "main"}, "tinyllama"},
		{ModelHandle{Owner: "cortexso", Repo: "tinyllama", Branch: "1b-gguf"}, "tinyllama-1b-gguf"},
		{ModelHandle{Name: "tinyllama"}, "tinyllama"},
	}
	for _, c := range cases {
		if got := c.h.FileStem(); got != c.want {
			t.Errorf("FileStem(%+v) = %q, want %q", c.h, got, c.want)
		}
	}
}
