package platform

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"testing"

	"github.com/ksyq12/labcmdr/internal/errors"
)

func stubInterfaces(t *testing.T, addrs map[string][]net.Addr) {
	t.Helper()
	old := interfaceAddrs
	interfaceAddrs = func(name string) ([]net.Addr, error) {
		a, ok := addrs[name]
		if !ok {
			return nil, fmt.Errorf("route ip+net: no such network interface")
		}
		return a, nil
	}
	t.Cleanup(func() { interfaceAddrs = old })
}

func ipNet(s string) *net.IPNet {
	ip, n, _ := net.ParseCIDR(s)
	n.IP = ip
	return n
}

func TestInterfaceIPv4(t *testing.T) {
	stubInterfaces(t, map[string][]net.Addr{
		"tun0":  {ipNet("dead:beef:2::1002/64"), ipNet("10.10.14.2/23")},
		"tun1":  {ipNet("fe80::1/64")},
		"eth0":  {&net.IPAddr{IP: net.ParseIP("192.168.1.20")}},
		"empty": {},
	})

	tests := []struct {
		iface   string
		want    string
		wantErr bool
	}{
		{"tun0", "10.10.14.2", false},
		{"eth0", "192.168.1.20", false},
		{"tun1", "", true},
		{"empty", "", true},
		{"wg0", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.iface, func(t *testing.T) {
			got, err := InterfaceIPv4(tt.iface)
			if (err != nil) != tt.wantErr {
				t.Fatalf("InterfaceIPv4(%s) error = %v, wantErr %v", tt.iface, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("InterfaceIPv4(%s) = %q, want %q", tt.iface, got, tt.want)
			}
		})
	}
}

func TestResolveAttackerIP(t *testing.T) {
	stubInterfaces(t, map[string][]net.Addr{
		"eth0": {ipNet("192.168.1.20/24")},
	})

	ip, iface, err := ResolveAttackerIP([]string{"tun0", "tun1", "eth0"})
	if err != nil {
		t.Fatalf("ResolveAttackerIP failed: %v", err)
	}
	if ip != "192.168.1.20" || iface != "eth0" {
		t.Errorf("got %s on %s", ip, iface)
	}

	_, _, err = ResolveAttackerIP([]string{"tun0"})
	if !errors.Is(err, errors.ErrNoInterface) {
		t.Errorf("expected ErrNoInterface, got %v", err)
	}
	_, _, err = ResolveAttackerIP(nil)
	if !errors.Is(err, errors.ErrNoInterface) {
		t.Errorf("expected ErrNoInterface for empty list, got %v", err)
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Error("own process should be alive")
	}
	if ProcessAlive(0) || ProcessAlive(-1) {
		t.Error("non-positive pids are never alive")
	}
	// pid_max on Linux is at most 4194304
	if ProcessAlive(1 << 23) {
		t.Error("pid beyond pid_max reported alive")
	}
}

func TestHostsFile(t *testing.T) {
	if runtime.GOOS != "windows" && HostsFile() != "/etc/hosts" {
		t.Errorf("HostsFile() = %s", HostsFile())
	}
}

func TestPlatform(t *testing.T) {
	p := Platform()
	if p == "" {
		t.Error("Platform() should return non-empty string")
	}

	// Should contain GOOS and GOARCH
	expected := runtime.GOOS + "/" + runtime.GOARCH
	if p != expected {
		t.Errorf("expected %s, got %s", expected, p)
	}
}
