package fileserver

import (
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/output"
	"go.uber.org/zap"
)

// Responses for POST
const (
	UploadOK       = "Upload successful\n"
	uploadFailedFn = "Upload failed: %s\n"
)

// Options configures a Handler
type Options struct {
	ServeRoot    string
	LootRoot     string
	EnableUpload bool
	// Log receives one entry per request; nil discards.
	Log *zap.Logger
	// Now is used for default upload names; nil means time.Now.
	Now func() time.Time
}

// Handler serves the lab's serve root and stores uploads in its loot root.
// It must be mounted directly on http.Server: a ServeMux would clean and
// redirect paths before they reach the handler.
type Handler struct {
	opts Options
}

// New returns a Handler for opts
func New(opts Options) *Handler {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{opts: opts}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.serveGet(w, r)
	case http.MethodPost:
		h.servePost(w, r)
	default:
		h.logf("[%s] %s → %s 501", r.Method, clientIP(r), r.URL.EscapedPath())
		plain(w, http.StatusNotImplemented, fmt.Sprintf("Unsupported method (%s)\n", r.Method))
	}
}

func (h *Handler) serveGet(w http.ResponseWriter, r *http.Request) {
	escaped := r.URL.EscapedPath()
	shown, _ := Sanitize(escaped)
	status := h.get(w, r, escaped)
	h.logf("[%s] %s → /%s %d", r.Method, clientIP(r), shown, status)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, escaped string) int {
	full, err := ResolveServePath(h.opts.ServeRoot, escaped)
	if err != nil {
		plain(w, http.StatusBadRequest, "Bad request\n")
		return http.StatusBadRequest
	}

	info, err := os.Stat(full)
	if err != nil {
		http.NotFound(w, r)
		return http.StatusNotFound
	}

	if info.IsDir() {
		if !strings.HasSuffix(escaped, "/") {
			target := redirectTarget(escaped)
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			w.Header().Set("Location", target)
			w.WriteHeader(http.StatusMovedPermanently)
			return http.StatusMovedPermanently
		}
		index := filepath.Join(full, "index.html")
		if fi, err := os.Stat(index); err == nil && !fi.IsDir() {
			full, info = index, fi
		} else {
			return h.listing(w, r, full, escaped)
		}
	}

	f, err := os.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return http.StatusNotFound
	}
	defer f.Close()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	http.ServeContent(rec, r, info.Name(), info.ModTime(), f)
	return rec.status
}

var listingTmpl = template.Must(template.New("listing").Parse(`<!DOCTYPE HTML>
<html>
<head>
<meta charset="utf-8">
<title>Directory listing for {{.Path}}</title>
</head>
<body>
<h1>Directory listing for {{.Path}}</h1>
<hr>
<ul>
{{- range .Entries}}
<li><a href="{{.Href}}">{{.Name}}</a></li>
{{- end}}
</ul>
<hr>
</body>
</html>
`))

type listingEntry struct {
	Name string
	Href string
}

func (h *Handler) listing(w http.ResponseWriter, r *http.Request, dir, escaped string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		plain(w, http.StatusNotFound, "No permission to list directory\n")
		return http.StatusNotFound
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	data := struct {
		Path    string
		Entries []listingEntry
	}{Path: "/"}
	if p, err := Sanitize(escaped); err == nil {
		data.Path = "/" + p
	}
	for _, e := range entries {
		name := e.Name()
		suffix := ""
		if e.IsDir() {
			suffix = "/"
		} else if e.Type()&os.ModeSymlink != 0 {
			suffix = "@"
		}
		data.Entries = append(data.Entries, listingEntry{
			Name: name + suffix,
			Href: "./" + url.PathEscape(name) + strings.TrimSuffix(suffix, "@"),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if err := listingTmpl.Execute(w, data); err != nil {
			h.opts.Log.Warn("listing render failed", zap.Error(err))
		}
	}
	return http.StatusOK
}

func (h *Handler) servePost(w http.ResponseWriter, r *http.Request) {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	}()
	client := clientIP(r)

	if !h.opts.EnableUpload {
		h.logf("[POST] %s → %s 403 (uploads disabled)", client, r.URL.EscapedPath())
		plain(w, http.StatusForbidden, "Uploads disabled\n")
		return
	}

	rel, n, err := h.store(r)
	if err != nil {
		h.logf("[ERROR] Upload failed: %v", err)
		plain(w, http.StatusInternalServerError, fmt.Sprintf(uploadFailedFn, reason(err)))
		return
	}

	h.logf("[UPLOAD] %s → %s (%s)", client, rel, output.FormatSize(n))
	plain(w, http.StatusOK, UploadOK)
}

// store streams the request body verbatim to the loot root and returns the
// path it was stored under. The Content-Type is ignored.
func (h *Handler) store(r *http.Request) (string, int64, error) {
	rel, err := UploadTarget(r.URL.EscapedPath())
	if err != nil {
		return "", 0, errors.UploadFailed(r.URL.EscapedPath(), err)
	}

	dest, rel, err := h.destination(rel)
	if err != nil {
		return rel, 0, errors.UploadFailed(rel, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return rel, 0, errors.UploadFailed(rel, err)
	}
	n, err := fsutil.WriteAtomic(dest, 0644, func(w io.Writer) (int64, error) {
		return io.Copy(w, r.Body)
	})
	if err != nil {
		return rel, n, errors.UploadFailed(rel, err)
	}
	return rel, n, nil
}

// destination resolves rel under the loot root. Empty targets and existing
// directories get a timestamped name, with a short random suffix when that
// name is taken.
func (h *Handler) destination(rel string) (string, string, error) {
	dest, err := ResolveUploadPath(h.opts.LootRoot, rel)
	if err != nil {
		return "", rel, err
	}
	if dest != filepath.Clean(h.opts.LootRoot) && !strings.HasSuffix(rel, "/") && !fsutil.IsDir(dest) {
		return dest, rel, nil
	}

	name := "upload_" + h.opts.Now().Format("20060102_150405")
	if fsutil.Exists(filepath.Join(dest, name)) {
		name += "_" + uuid.NewString()[:8]
	}
	rel = path.Join(strings.TrimSuffix(rel, "/"), name)
	return filepath.Join(dest, name), rel, nil
}

// redirectTarget is the slash form of a directory path. It is rebuilt from
// the sanitized path so it always stays on this host.
func redirectTarget(escaped string) string {
	rel, _ := Sanitize(escaped)
	p := path.Clean("/" + rel)
	if p != "/" {
		p += "/"
	}
	return (&url.URL{Path: p}).EscapedPath()
}

func (h *Handler) logf(format string, args ...interface{}) {
	h.opts.Log.Info(fmt.Sprintf(format, args...))
}

// reason is the innermost error message, without the coded prefix
func reason(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func plain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
