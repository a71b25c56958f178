package fileserver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/tools/linpeas.sh", "tools/linpeas.sh"},
		{"/tools/linpeas.sh?x=1#frag", "tools/linpeas.sh"},
		{"/../../etc/passwd", "//etc/passwd"},
		{"/%2e%2e/%2e%2e/etc/passwd", "//etc/passwd"},
		{"/....//....//etc/passwd", "////etc/passwd"},
		{"/a%20b.txt", "a b.txt"},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Sanitize(tt.in)
			if err != nil {
				t.Fatalf("Sanitize(%q) failed: %v", tt.in, err)
			}
			got = strings.TrimLeft(got, "/")
			want := strings.TrimLeft(tt.want, "/")
			if got != want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, want)
			}
			if strings.Contains(got, "..") {
				t.Errorf("Sanitize(%q) kept a parent reference: %q", tt.in, got)
			}
		})
	}

	if _, err := Sanitize("/%zz"); err == nil {
		t.Error("expected error for bad escape")
	}
}

func TestResolveServePath_StaysInsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "serve")
	if err := os.MkdirAll(filepath.Join(root, "tools"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "secret"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// symlink pointing outside the root
	if err := os.Symlink(base, filepath.Join(root, "escape")); err != nil {
		t.Fatal(err)
	}

	attacks := []string{
		"/../secret",
		"/%2e%2e/secret",
		"/%2E%2E%2Fsecret",
		"/....//secret",
		"/..././secret",
		"/tools/../../secret",
		"/escape/secret",
		"/escape/../../secret",
		"//../secret",
		"/.%2e/secret",
	}

	for _, p := range attacks {
		t.Run(p, func(t *testing.T) {
			got, err := ResolveServePath(root, p)
			if err != nil {
				return
			}
			if !within(root, got) {
				t.Errorf("ResolveServePath(%q) = %s escapes %s", p, got, root)
			}
		})
	}

	got, err := ResolveServePath(root, "/tools/linpeas.sh")
	if err != nil || got != filepath.Join(root, "tools", "linpeas.sh") {
		t.Errorf("ResolveServePath(normal) = %s, %v", got, err)
	}
}

func TestUploadTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/upload/notes.txt", "notes.txt"},
		{"/upload/creds/shadow", "creds/shadow"},
		{"/upload/", ""},
		{"/upload", ""},
		{"/", ""},
		{"/hashes/ntlm.txt", "hashes/ntlm.txt"},
		{"/upload/../../etc/cron.d/x", "//etc/cron.d/x"},
		{"/upload/creds/", "creds/"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := UploadTarget(tt.in)
			if err != nil {
				t.Fatalf("UploadTarget(%q) failed: %v", tt.in, err)
			}
			if strings.TrimLeft(got, "/") != strings.TrimLeft(tt.want, "/") {
				t.Errorf("UploadTarget(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveUploadPath_StaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"/upload/../x", "/upload/%2e%2e/%2e%2e/x", "/upload/....//x"} {
		rel, err := UploadTarget(p)
		if err != nil {
			t.Fatal(err)
		}
		got, err := ResolveUploadPath(root, rel)
		if err != nil {
			t.Fatal(err)
		}
		if !within(root, got) {
			t.Errorf("%s resolved outside loot root: %s", p, got)
		}
	}
}
