package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ksyq12/labcmdr/internal/lab"
)

// TestConsoleSession drives a whole operator session: create a lab, start
// the server from the console, download a tool, receive an upload, stop and
// leave, then check the record from a second invocation.
func TestConsoleSession(t *testing.T) {
	h := NewTestHelper(t)
	root := filepath.Join(h.Home, "Labs", "forest")

	if err := h.Execute("create", root, "--ip", "10.10.10.161", "--fqdn", "forest.htb"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	h.SetLab(root)

	tool := filepath.Join(root, "server", "serve", "tools", "linpeas.sh")
	if err := os.MkdirAll(filepath.Dir(tool), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(tool, []byte("#!/bin/sh\necho peas\n"), 0755); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	pr, pw := io.Pipe()
	defer pw.Close()
	resetFlags()
	deps.Stdin = pr
	deps.Stdout = h.Out
	deps.Interrupts = &MockInterrupts{C: make(chan os.Signal, 1)}

	done := make(chan error, 1)
	go func() { done <- h.Execute("run") }()

	port := freePort(t)
	if _, err := fmt.Fprintf(pw, "start %d\n", port); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitFor(t, "server start", func() bool {
		cfg, err := lab.Load(root)
		return err == nil && cfg.Runtime.ServerRunning
	})
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/tools/linpeas.sh")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "#!/bin/sh\necho peas\n" {
		t.Fatalf("GET = %d %q", resp.StatusCode, body)
	}

	resp, err = client.Post(base+"/upload/notes.txt", "application/octet-stream", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d", resp.StatusCode)
	}
	stored, err := os.ReadFile(filepath.Join(root, "server", "loot", "notes.txt"))
	if err != nil || string(stored) != "hello" {
		t.Fatalf("upload stored %q, %v", stored, err)
	}

	if _, err := io.WriteString(pw, "status\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitFor(t, "status output", func() bool {
		return strings.Contains(h.Out.String(), fmt.Sprintf("Server running on http://127.0.0.1:%d", port))
	})

	if _, err := io.WriteString(pw, "stop\nquit\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("console returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("console did not exit")
	}

	logData, err := os.ReadFile(lab.LogPath(root))
	if err != nil {
		t.Fatalf("server log missing: %v", err)
	}
	for _, want := range []string{"/tools/linpeas.sh 200", "[UPLOAD]", "notes.txt"} {
		if !strings.Contains(string(logData), want) {
			t.Errorf("log missing %q:\n%s", want, logData)
		}
	}

	if _, err := client.Get(base + "/tools/linpeas.sh"); err == nil {
		t.Error("server still answering after stop")
	}

	resetFlags()
	h.Out.Reset()
	if err := h.Execute("status", "--json"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var st map[string]interface{}
	if err := json.Unmarshal([]byte(h.Out.String()), &st); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, h.Out.String())
	}
	if st["server_running"] != false {
		t.Errorf("server_running = %v, want false", st["server_running"])
	}
	if st["ip_address"] != "10.10.10.161" {
		t.Errorf("ip_address = %v", st["ip_address"])
	}
}
