package cli

import (
	"io/fs"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/ksyq12/labcmdr/internal/server"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the files the server offers",
}

var toolsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List files under the serve root",
	Long: `List every file under the lab's serve root (server.serve_path) with its
size, and the download URL while the server is running.

Examples:
  labcmdr tools list
  labcmdr tools ls --json`,
	Args: cobra.NoArgs,
	RunE: runToolsList,
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(toolsCmd)
}

type toolListItem struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}

func runToolsList(cmd *cobra.Command, args []string) error {
	root, cfg, err := currentLab()
	if err != nil {
		return err
	}
	g := loadGlobal()
	serveRoot := config.LabPath(root, g.Server.ServePath)

	st := server.StatusOf(cfg.Runtime, deps.Process.Alive, time.Now())
	items, err := listTools(serveRoot, st.URL)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		if jsonOutput {
			return output.JSON([]toolListItem{})
		}
		output.Info("No files under %s", serveRoot)
		return nil
	}

	if jsonOutput {
		return output.JSON(items)
	}

	headers := []string{"PATH", "SIZE"}
	if st.URL != "" {
		headers = append(headers, "URL")
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := []string{item.Path, output.FormatSize(item.Size)}
		if st.URL != "" {
			row = append(row, item.URL)
		}
		rows = append(rows, row)
	}
	output.Table(headers, rows)
	return nil
}

// listTools walks the serve root. baseURL may be empty when no server runs.
func listTools(serveRoot, baseURL string) ([]toolListItem, error) {
	items := []toolListItem{}
	if !fsutil.IsDir(serveRoot) {
		return items, nil
	}
	err := filepath.WalkDir(serveRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(serveRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		item := toolListItem{Path: rel, Size: info.Size()}
		if baseURL != "" {
			item.URL = baseURL + "/" + escapePath(rel)
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Path < items[j].Path
	})
	return items, nil
}

// escapePath percent-encodes each segment of a slash separated path
func escapePath(rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
