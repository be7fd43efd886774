package diagram

import (
	"regexp"
	"testing"
)

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"userService", "userService"},
		{"user-service", "userservice"},
		{"123abc", "abc"},
		{"__init__", "init__"},
		{"_9lives", "lives"},
		{"héllo wörld", "hllowrld"},
		{"", placeholder},
		{"___", placeholder},
		{"42", placeholder},
		{"$", placeholder},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize_AlwaysValidIdentifier(t *testing.T) {
	inputs := []string{"a.js", "9.js", "[id].tsx", "__", "ünïcode", "x y z", "-", "0_0", "React.FC<Props>", "app/[slug]/page.tsx"}
	for _, in := range inputs {
		for name, got := range map[string]string{"Sanitize": Sanitize(in), "ID": ID(in), "FileID": FileID(in)} {
			if !identPattern.MatchString(got) {
				t.Errorf("%s(%q) = %q is not a Mermaid identifier", name, in, got)
			}
		}
	}
}

func TestID_DistinctNamesNeverCollide(t *testing.T) {
	if Sanitize("a-b") != Sanitize("ab") {
		t.Fatal("expected a-b and ab to sanitize alike")
	}
	if ID("a-b") == ID("ab") {
		t.Error("ID(a-b) collides with ID(ab)")
	}
	if Sanitize("user_service") != Sanitize("_user_service") {
		t.Fatal("expected user_service and _user_service to sanitize alike")
	}
	pairs := [][2]string{
		{"user_service.js", "_user_service.js"},
		{"a.js", "a.ts"},
		{"app/page.tsx", "app/about/page.tsx"},
	}
	for _, p := range pairs {
		if FileID(p[0]) == FileID(p[1]) {
			t.Errorf("FileID(%q) collides with FileID(%q)", p[0], p[1])
		}
	}
}

func TestFileID_LabelsByBasename(t *testing.T) {
	if got, want := FileID("app/about/page.tsx"), "page_"+ShortHash("app/about/page.tsx"); got != want {
		t.Errorf("FileID = %q, want %q", got, want)
	}
}

func TestID_Deterministic(t *testing.T) {
	if ID("Frontend/UI") != ID("Frontend/UI") {
		t.Error("ID is not deterministic")
	}
	if n := len(ShortHash("anything")); n != 6 {
		t.Errorf("ShortHash length = %d, want 6", n)
	}
	if got, want := FileID("a.js"), "a_"+ShortHash("a.js"); got != want {
		t.Errorf("FileID(a.js) = %q, want %q", got, want)
	}
}

func TestVisibility(t *testing.T) {
	tests := map[string]string{
		"foo":     "+",
		"Foo":     "+",
		"_foo":    "-",
		"__foo":   "#",
		"___foo":  "#",
		"foo_bar": "+",
		"foo_":    "+",
	}
	for name, want := range tests {
		if got := Visibility(name); got != want {
			t.Errorf("Visibility(%q) = %q, want %q", name, got, want)
		}
	}
}
