package glob

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"main", "main", true},
		{"main", "Main", false},
		{"release/*", "release/1.2", true},
		{"release/*", "release/v2/hotfix", true},
		{"release/*", "main", false},
		{"src/**", "src/internal/agent/catalog.go", true},
		{"src/**", "docs/readme.md", false},
		{"*.go", "internal/agent/catalog.go", true},
		{"*.go", "catalog.yaml", false},
		{"?ain", "main", true},
		{"?ain", "rain", true},
		{"?ain", "brain", false},
		{"v[0-9].*", "v1.2.3", true},
		{"v[0-9].*", "vX.2.3", false},
		{"[!a]bc", "xbc", true},
		{"[!a]bc", "abc", false},
		{"a[", "a[", false},
		{"", "", true},
		{"", "x", false},
	}
	for _, tt := range tests {
		if got := Match(tt.pattern, tt.name); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"docs/*.md", "docs/readme.md", true},
		{"docs/*.md", "docs/nested/deep.md", false},
		{"docs/*.md", "readme.md", false},
		{"*.md", "readme.md", true},
		{"*.md", "docs/readme.md", false},
		{"docs/**", "docs/nested/deep.md", true},
		{"docs/**", "docs/readme.md", true},
		{"docs/**", "src/app.py", false},
		{"docs/**/*.md", "docs/nested/deep.md", true},
		{"docs/**/*.md", "docs/nested/deep.txt", false},
		{"src/*/main.py", "src/app/main.py", true},
		{"src/*/main.py", "src/app/sub/main.py", false},
		{"?.md", "a.md", true},
		{"?.md", "ab.md", false},
		{"a/b.py", "a/b.py", true},
		{"a/b.py", "a/b/c.py", false},
	}
	for _, tt := range tests {
		if got := MatchPath(tt.pattern, tt.name); got != tt.want {
			t.Errorf("MatchPath(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"main", "release/*"}
	if !MatchAny(patterns, "release/1.0") {
		t.Error("expected release/1.0 to match")
	}
	if MatchAny(patterns, "feature/foo") {
		t.Error("expected feature/foo not to match")
	}
	if MatchAny(nil, "main") {
		t.Error("expected no match against empty pattern list")
	}
}
