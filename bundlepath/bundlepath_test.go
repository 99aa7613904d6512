package bundlepath

import "testing"

func TestFromNormalization(t *testing.T) {
	cases := map[string][]string{
		"/a/b/c":   {"a", "b", "c"},
		"a/b/c":    {"a", "b", "c"},
		"/a/b/c/":  {"a", "b", "c"},
		"//a//b//": {"a", "b"},
		"/":        {},
		"":         {},
	}
	for in, want := range cases {
		got := From(in).Components()
		if len(got) != len(want) {
			t.Fatalf("From(%q) = %v, want %v", in, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("From(%q) = %v, want %v", in, got, want)
			}
		}
	}
}

func TestFromStringIdempotent(t *testing.T) {
	inputs := []string{"/a/b/c", "/", "a", "/x/y/z/"}
	for _, in := range inputs {
		p := From(in)
		again := From(p.String())
		if !p.Equal(again) {
			t.Fatalf("From(%q).String() round trip mismatch: %v vs %v", in, p, again)
		}
	}
}

func TestIsPrefixOf(t *testing.T) {
	a := From("/a/b")
	b := From("/a/b/c")
	if !a.IsPrefixOf(b) {
		t.Fatalf("expected %v to be a prefix of %v", a, b)
	}
	if b.IsPrefixOf(a) {
		t.Fatalf("did not expect %v to be a prefix of %v", b, a)
	}
	if !Root().IsPrefixOf(b) {
		t.Fatalf("expected root to be a prefix of everything")
	}
}

func TestParent(t *testing.T) {
	p := From("/a/b/c")
	parent, leaf := p.Parent()
	if parent.String() != "/a/b" || leaf != "c" {
		t.Fatalf("Parent() = (%v, %q), want (/a/b, c)", parent, leaf)
	}
	root, leaf := Root().Parent()
	if !root.IsRoot() || leaf != "" {
		t.Fatalf("Parent() of root = (%v, %q), want (root, \"\")", root, leaf)
	}
}

func TestJoin(t *testing.T) {
	p := From("/a").Join("b", "c")
	if p.String() != "/a/b/c" {
		t.Fatalf("Join() = %v, want /a/b/c", p)
	}
}
