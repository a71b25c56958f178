package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/logger"
)

// Dirs are created under every lab root
var Dirs = []string{
	"notes",
	"server/serve/exploits",
	"server/serve/tools",
	"server/serve/payloads",
	"server/loot/creds",
	"server/loot/interesting_files",
	"server/loot/hashes",
	"server/loot/screenshots",
	lab.MarkerDir,
	"scans/nmap",
}

// Files are created empty under every lab root
var Files = []string{
	"notes/enumeration.md",
	"notes/escalation.md",
	"notes/general_notes.md",
	"notes/initial_access.md",
	"notes/walkthrough.md",
	"server/loot/creds/scratchpad.txt",
	"server/loot/creds/passwords.txt",
	"server/loot/creds/usernames.txt",
}

// Data is passed to the note templates
type Data struct {
	Name     string
	Platform string
	IP       string
	Created  string
}

// NewData builds template data from lab metadata
func NewData(meta lab.Metadata, ip string) Data {
	name := meta.Name
	if name == "" {
		name = meta.ChallengeName
	}
	return Data{Name: name, Platform: meta.Platform, IP: ip, Created: meta.Created}
}

// Overwriter decides whether an existing file may be replaced. Ask is only
// consulted under the prompt policy and must return one of y, n, a or s.
type Overwriter struct {
	Policy string
	Ask    func(path string) (string, error)
}

// Allow reports whether path may be written, updating the policy when the
// operator answers "all" or "skip".
func (o *Overwriter) Allow(path string) (bool, error) {
	if !fsutil.Exists(path) {
		return true, nil
	}
	switch o.Policy {
	case config.OverwriteAll:
		return true, nil
	case config.OverwriteNone:
		return false, nil
	}
	if o.Ask == nil {
		return false, nil
	}
	for {
		answer, err := o.Ask(path)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "a", "all":
			o.Policy = config.OverwriteAll
			return true, nil
		case "s", "skip":
			o.Policy = config.OverwriteNone
			return false, nil
		}
	}
}

// Result lists what Create did, with paths relative to the lab root
type Result struct {
	Root    string   `json:"root"`
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// Create lays out the skeleton under root and renders the note templates.
// Existing files go through ow; directories are always created.
func Create(root string, data Data, ow *Overwriter) (*Result, error) {
	if ow == nil {
		ow = &Overwriter{Policy: config.OverwriteNone}
	}
	res := &Result{Root: root, Created: []string{}, Skipped: []string{}}

	for _, d := range Dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return res, fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	write := func(rel string, content []byte) error {
		path := filepath.Join(root, rel)
		ok, err := ow.Allow(path)
		if err != nil {
			return err
		}
		if !ok {
			logger.Debug("Skipping existing %s", rel)
			res.Skipped = append(res.Skipped, rel)
			return nil
		}
		if err := fsutil.WriteFileAtomic(path, content, 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", rel, err)
		}
		res.Created = append(res.Created, rel)
		return nil
	}

	for _, f := range Files {
		if err := write(f, nil); err != nil {
			return res, err
		}
	}

	srcs := make([]string, 0, len(copied))
	for src := range copied {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	for _, src := range srcs {
		content, err := Render(src, data)
		if err != nil {
			return res, err
		}
		if err := write(copied[src], []byte(content)); err != nil {
			return res, err
		}
	}

	return res, nil
}

// Render renders an embedded template with data
func Render(name string, data Data) (string, error) {
	content, err := noteTemplates.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("template not found: %s", name)
	}

	funcMap := template.FuncMap{
		"upper": strings.ToUpper,
		"default": func(def, v string) string {
			if v == "" {
				return def
			}
			return v
		},
	}

	tmpl, err := template.New(filepath.Base(name)).Funcs(funcMap).Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	if data.Name == "" {
		data.Name = "unnamed_lab"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

var (
	punctuation = regexp.MustCompile(`[^\w\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
	words       = regexp.MustCompile(`[A-Za-z0-9]+`)
)

// cleanName drops punctuation and whitespace
func cleanName(s string) string {
	return whitespace.ReplaceAllString(punctuation.ReplaceAllString(s, ""), "")
}

// cleanLocation title-cases the words of a location and appends the year
func cleanLocation(s string, year int) string {
	var b strings.Builder
	for _, w := range words.FindAllString(s, -1) {
		b.WriteString(strings.ToUpper(w[:1]) + strings.ToLower(w[1:]))
	}
	return b.String() + strconv.Itoa(year)
}

// DefaultPath derives where a lab lives under labsRoot from its metadata
// when create is given no explicit path.
//
//	training    <platform>/<name>
//	htb season  HTB_Season_<N>/Week<WW>-<name>
//	bsides      BSides/<Location><year>[/<challenge>]
//	defcon      DefCon/<year>[/<village>][/<challenge>]
//	conference  <conference_name>/<year>[/<challenge>]
//	custom      [<category>/]<name>
func DefaultPath(labsRoot string, meta lab.Metadata) (string, error) {
	year := time.Now().Year()
	if n, ok := meta.Year.Int(); ok {
		year = n
	}
	withChallenge := func(base string) string {
		if meta.ChallengeName != "" {
			return filepath.Join(base, meta.ChallengeName)
		}
		return base
	}

	switch {
	case meta.Season != nil && meta.Name != "":
		week := "00"
		if n, ok := meta.Week.Int(); ok {
			week = fmt.Sprintf("%02d", n)
		} else if meta.Week != nil {
			week = cleanName(meta.Week.String())
		}
		return filepath.Join(labsRoot, "HTB_Season_"+cleanName(meta.Season.String()), "Week"+week+"-"+meta.Name), nil

	case strings.EqualFold(meta.Conference, "bsides"):
		loc := meta.Location
		if loc == "" {
			loc = "Unknown"
		}
		return withChallenge(filepath.Join(labsRoot, "BSides", cleanLocation(loc, year))), nil

	case strings.EqualFold(meta.Conference, "defcon"):
		base := filepath.Join(labsRoot, "DefCon", strconv.Itoa(year))
		if v := cleanName(meta.Village); v != "" {
			base = filepath.Join(base, v)
		}
		return withChallenge(base), nil

	case meta.Conference != "":
		name := meta.ConferenceName
		if name == "" {
			name = "Conference"
		}
		return withChallenge(filepath.Join(labsRoot, name, strconv.Itoa(year))), nil

	case meta.Platform != "" && meta.Name != "":
		return filepath.Join(labsRoot, meta.Platform, meta.Name), nil

	case meta.Name != "":
		if meta.Category != "" {
			return filepath.Join(labsRoot, meta.Category, meta.Name), nil
		}
		return filepath.Join(labsRoot, meta.Name), nil
	}

	return "", errors.Validation("cannot derive a lab path: pass a path or --name")
}
