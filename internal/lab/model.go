package lab

import (
	"strconv"
	"time"

	"github.com/ksyq12/labcmdr/internal/hosts"
)

// Config is the per-lab configuration stored in labcmdr/labconfig.json
type Config struct {
	Metadata    Metadata    `json:"metadata"`
	Network     Network     `json:"network"`
	Credentials Credentials `json:"credentials"`
	Runtime     Runtime     `json:"runtime"`

	// doc holds the decoded file so keys unknown to this version survive a save
	doc map[string]interface{}
}

// Metadata describes the lab
type Metadata struct {
	Name           string `json:"name"`
	Platform       string `json:"platform"`
	Type           string `json:"type"`
	Created        string `json:"created"`
	Season         *Tag   `json:"season"`
	Week           *Tag   `json:"week"`
	Conference     string `json:"conference"`
	ConferenceName string `json:"conference_name"`
	Village        string `json:"village"`
	Location       string `json:"location"`
	Year           *Tag   `json:"year"`
	ChallengeName  string `json:"challenge_name"`
	Category       string `json:"category"`
}

// Network holds target addressing
type Network struct {
	IPAddress        string   `json:"ip_address"`
	Domain           string   `json:"domain"`
	DomainName       string   `json:"domain_name"`
	DomainController string   `json:"domain_controller"`
	FQDN             []string `json:"fqdn"`
}

// Credentials holds plaintext lab credentials
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Runtime is owned by the file server. When ServerRunning is false every
// other server field is nil.
type Runtime struct {
	ServerRunning   bool    `json:"server_running"`
	ServerPort      *int    `json:"server_port"`
	ServerPID       *int    `json:"server_pid"`
	ServerStartedAt *string `json:"server_started_at"`
	ServerLog       *string `json:"server_log"`
	ServerIP        *string `json:"server_ip"`
	LastScan        *string `json:"last_scan"`
	LastScanTime    *string `json:"last_scan_time"`
}

// New returns a template config for a freshly created lab
func New(meta Metadata) *Config {
	if meta.Created == "" {
		meta.Created = time.Now().Format(time.RFC3339)
	}
	return &Config{
		Metadata: meta,
		Network:  Network{FQDN: []string{}},
	}
}

// DisplayName returns the best available name for the lab
func (c *Config) DisplayName() string {
	for _, name := range []string{c.Metadata.Name, c.Metadata.ChallengeName} {
		if name != "" {
			return name
		}
	}
	if v, ok := c.doc["metadata"].(map[string]interface{}); ok {
		for _, key := range []string{"machine_name", "lab_name"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return "unnamed_lab"
}

// AddFQDN validates and appends name. It reports whether name was already
// listed; duplicates are kept as requested.
func (c *Config) AddFQDN(name string) (bool, error) {
	if err := hosts.ValidateFQDN(name); err != nil {
		return false, err
	}
	dup := c.HasFQDN(name)
	c.Network.FQDN = append(c.Network.FQDN, name)
	return dup, nil
}

// RemoveFQDN drops every occurrence of name and reports whether any existed
func (c *Config) RemoveFQDN(name string) bool {
	kept := c.Network.FQDN[:0]
	found := false
	for _, f := range c.Network.FQDN {
		if f == name {
			found = true
			continue
		}
		kept = append(kept, f)
	}
	c.Network.FQDN = kept
	return found
}

// HasFQDN reports whether name is listed
func (c *Config) HasFQDN(name string) bool {
	for _, f := range c.Network.FQDN {
		if f == name {
			return true
		}
	}
	return false
}

// SetIP validates and stores the target address. An empty string clears it.
func (c *Config) SetIP(ip string) error {
	if ip != "" {
		if err := hosts.ValidateIPv4(ip); err != nil {
			return err
		}
	}
	c.Network.IPAddress = ip
	return nil
}

// MarkRunning records a started server in one step
func (r *Runtime) MarkRunning(port, pid int, ip, logPath string, started time.Time) {
	ts := started.Format(time.RFC3339)
	r.ServerRunning = true
	r.ServerPort = &port
	r.ServerPID = &pid
	r.ServerStartedAt = &ts
	r.ServerLog = &logPath
	r.ServerIP = &ip
}

// Clear resets every server field together
func (r *Runtime) Clear() {
	r.ServerRunning = false
	r.ServerPort = nil
	r.ServerPID = nil
	r.ServerStartedAt = nil
	r.ServerLog = nil
	r.ServerIP = nil
}

// Consistent reports whether the record obeys the all-or-nothing rule
func (r Runtime) Consistent() bool {
	if r.ServerRunning {
		return r.ServerPort != nil
	}
	return r.ServerPort == nil && r.ServerPID == nil && r.ServerStartedAt == nil &&
		r.ServerLog == nil && r.ServerIP == nil
}

// Active reports whether the record describes a live server. Partial
// records and records whose PID is gone count as not running. alive may be
// nil to skip the PID check.
func (r Runtime) Active(alive func(pid int) bool) bool {
	if !r.ServerRunning || r.ServerPort == nil {
		return false
	}
	if alive != nil && r.ServerPID != nil && !alive(*r.ServerPID) {
		return false
	}
	return true
}

// StartedAt parses ServerStartedAt. Timestamps without a zone are read as
// local time.
func (r Runtime) StartedAt() (time.Time, bool) {
	if r.ServerStartedAt == nil {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, *r.ServerStartedAt, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Uptime returns the time since the recorded start
func (r Runtime) Uptime(now time.Time) (time.Duration, bool) {
	started, ok := r.StartedAt()
	if !ok {
		return 0, false
	}
	return now.Sub(started).Truncate(time.Second), true
}

// Int renders an optional int for display
func Int(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// Str dereferences an optional string
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
