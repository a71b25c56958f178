// Package platform answers questions about the attacking host: which address
// a VPN interface holds, whether a process is still alive, and what OS this is.
package platform

import (
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/ksyq12/labcmdr/internal/errors"
	"golang.org/x/sys/unix"
)

// interfaceAddrs is swapped out in tests
var interfaceAddrs = func(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	if iface.Flags&net.FlagUp == 0 {
		return nil, fmt.Errorf("interface %s is down", name)
	}
	return iface.Addrs()
}

// InterfaceIPv4 returns the first IPv4 address assigned to the named interface.
func InterfaceIPv4(name string) (string, error) {
	addrs, err := interfaceAddrs(name)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("interface %s has no IPv4 address", name)
}

// ResolveAttackerIP tries each interface in order and returns the first IPv4
// address found along with the interface it came from.
func ResolveAttackerIP(names []string) (ip, iface string, err error) {
	if len(names) == 0 {
		return "", "", errors.Wrap(errors.ErrCodeNoInterface, "no network interface configured", nil)
	}
	var last error
	for _, name := range names {
		ip, err := InterfaceIPv4(name)
		if err == nil {
			return ip, name, nil
		}
		last = err
	}
	return "", "", errors.Wrap(errors.ErrCodeNoInterface,
		fmt.Sprintf("no IPv4 address on %v (is the VPN connected?)", names), last)
}

// ProcessAlive reports whether pid names a running process. A process owned
// by another user still counts as alive.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// Signal sends sig to pid
func Signal(pid int, sig os.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}

// HostsFile returns the default hosts file location for this OS
func HostsFile() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

// Platform returns a string describing the current platform.
func Platform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
