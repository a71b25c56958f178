package server

import (
	"net"
	"strconv"
	"time"

	"github.com/ksyq12/labcmdr/internal/lab"
)

// Status describes the server recorded in a lab config
type Status struct {
	Running   bool          `json:"running"`
	Stale     bool          `json:"stale"`
	Port      int           `json:"port,omitempty"`
	PID       int           `json:"pid,omitempty"`
	IP        string        `json:"ip,omitempty"`
	URL       string        `json:"url,omitempty"`
	LogPath   string        `json:"log,omitempty"`
	StartedAt string        `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime_ns,omitempty"`
}

// StatusOf reads the runtime record. A record whose PID is gone, or one that
// is only partly filled, reports Stale and not Running.
func StatusOf(rt lab.Runtime, alive func(pid int) bool, now time.Time) Status {
	st := Status{Running: rt.Active(alive)}
	if !st.Running {
		st.Stale = rt.ServerRunning || !rt.Consistent()
		return st
	}

	if rt.ServerPort != nil {
		st.Port = *rt.ServerPort
	}
	if rt.ServerPID != nil {
		st.PID = *rt.ServerPID
	}
	st.IP = lab.Str(rt.ServerIP)
	st.LogPath = lab.Str(rt.ServerLog)
	st.StartedAt = lab.Str(rt.ServerStartedAt)
	if st.IP != "" && st.Port != 0 {
		st.URL = "http://" + net.JoinHostPort(st.IP, strconv.Itoa(st.Port))
	}
	if up, ok := rt.Uptime(now); ok {
		st.Uptime = up
	}
	return st
}

// FormatUptime renders a duration as "1h 2m 3s", dropping leading zero units
func FormatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return strconv.Itoa(h) + "h " + strconv.Itoa(m) + "m " + strconv.Itoa(s) + "s"
	case m > 0:
		return strconv.Itoa(m) + "m " + strconv.Itoa(s) + "s"
	default:
		return strconv.Itoa(s) + "s"
	}
}
