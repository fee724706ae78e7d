package dispatcher

import "testing"

func TestPageIDFromPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/devtools/page/ABCDEF", "ABCDEF"},
		{"/devtools/page/ABCDEF?foo=bar", "ABCDEF"},
		{"/devtools/page/ABCDEF/", "ABCDEF"},
		{"ABCDEF", "ABCDEF"},
	}
	for _, c := range cases {
		if got := pageIDFromPath(c.in); got != c.want {
			t.Errorf("pageIDFromPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
