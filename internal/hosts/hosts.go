// Package hosts validates lab hostnames and maintains lab-tagged blocks in the
// system hosts file.
//
// Each lab owns one block:
//
//	# LABCMDR - forest
//	10.10.10.5	forest.htb
//	10.10.10.5	dc01.forest.htb
//	# END LABCMDR - forest
//
// The whole file is rewritten in one privileged pipe write (sudo tee), so a
// failed write leaves the previous content in place.
package hosts

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/executor"
	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/logger"
)

const (
	beginPrefix = "# LABCMDR - "
	endPrefix   = "# END LABCMDR - "
)

var fqdnPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.-]*[A-Za-z0-9])?$`)

// ValidateFQDN checks name against the hostname grammar: letters, digits,
// hyphens and dots, starting and ending alphanumeric, no empty labels.
func ValidateFQDN(name string) error {
	if name == "" {
		return errors.Validation("FQDN cannot be empty")
	}
	if len(name) > 253 {
		return errors.Validation(fmt.Sprintf("FQDN too long: %s", name))
	}
	if strings.Contains(name, "..") || !fqdnPattern.MatchString(name) {
		return errors.Validation(fmt.Sprintf("invalid FQDN format: %s", name))
	}
	return nil
}

// ValidateIPv4 checks that s is a dotted-quad IPv4 address
func ValidateIPv4(s string) error {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil || strings.Contains(s, ":") {
		return errors.Validation(fmt.Sprintf("invalid IPv4 address: %s", s))
	}
	return nil
}

// Block renders the hosts lines for a lab. Every name is validated first;
// nothing is rendered if any fails.
func Block(lab, ip string, fqdns []string) ([]string, error) {
	if lab == "" {
		return nil, errors.Validation("lab name is required for hosts entries")
	}
	if err := ValidateIPv4(ip); err != nil {
		return nil, err
	}
	if len(fqdns) == 0 {
		return nil, errors.Validation("at least one FQDN is required")
	}

	lines := []string{beginPrefix + lab}
	seen := make(map[string]bool, len(fqdns))
	for _, f := range fqdns {
		if err := ValidateFQDN(f); err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		lines = append(lines, ip+"\t"+f)
	}
	return append(lines, endPrefix+lab), nil
}

// Strip removes the block for lab. A begin tag for another lab also closes
// an unterminated block. It returns the remaining lines and the number of
// host entries removed.
func Strip(lines []string, lab string) ([]string, int) {
	begin, end := beginPrefix+lab, endPrefix+lab
	out := make([]string, 0, len(lines))
	inside := false
	removed := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == begin {
			inside = true
			continue
		}
		if inside {
			if trimmed == end {
				inside = false
				continue
			}
			if strings.HasPrefix(trimmed, beginPrefix) {
				inside = false
			} else {
				if trimmed != "" {
					removed++
				}
				continue
			}
		}
		out = append(out, line)
	}

	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out, removed
}

// Entries returns the host lines inside the block for lab
func Entries(lines []string, lab string) []string {
	begin, end := beginPrefix+lab, endPrefix+lab
	var entries []string
	inside := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == begin:
			inside = true
		case inside && (trimmed == end || strings.HasPrefix(trimmed, beginPrefix)):
			inside = false
		case inside && trimmed != "":
			entries = append(entries, trimmed)
		}
	}
	return entries
}

// Labs lists the lab names that own a block, in file order
func Labs(lines []string) []string {
	var labs []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, beginPrefix) {
			labs = append(labs, strings.TrimPrefix(trimmed, beginPrefix))
		}
	}
	return labs
}

// Manager reads and rewrites a hosts file
type Manager struct {
	Path    string
	UseSudo bool
	Exec    executor.CommandExecutor
}

// Read returns the file's lines. A missing file reads as empty.
func (m *Manager) Read() ([]string, error) {
	data, err := os.ReadFile(m.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.Path, err)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// Update replaces the lab's block with entries for ip and fqdns
func (m *Manager) Update(lab, ip string, fqdns []string) error {
	block, err := Block(lab, ip, fqdns)
	if err != nil {
		return err
	}
	lines, err := m.Read()
	if err != nil {
		return errors.HostsUpdateFailed(m.Path, err)
	}

	lines, _ = Strip(lines, lab)
	if len(lines) > 0 {
		lines = append(lines, "")
	}
	lines = append(lines, block...)
	return m.write(lines)
}

// Remove deletes the lab's block and returns how many entries it held
func (m *Manager) Remove(lab string) (int, error) {
	lines, err := m.Read()
	if err != nil {
		return 0, errors.HostsUpdateFailed(m.Path, err)
	}
	kept, removed := Strip(lines, lab)
	if len(kept) == len(lines) {
		return 0, nil
	}
	return removed, m.write(kept)
}

func (m *Manager) write(lines []string) error {
	content := []byte(strings.Join(lines, "\n") + "\n")
	logger.Debug("Writing %d lines to %s (sudo=%v)", len(lines), m.Path, m.UseSudo)

	if m.UseSudo {
		if _, err := m.Exec.ExecuteInput(content, "sudo", "tee", m.Path); err != nil {
			return errors.HostsUpdateFailed(m.Path, err)
		}
		return nil
	}
	if err := fsutil.WriteFileAtomic(m.Path, content, 0644); err != nil {
		return errors.HostsUpdateFailed(m.Path, err)
	}
	return nil
}
