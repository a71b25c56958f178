package template

import (
	"embed"
)

//go:embed files/notes/*.tmpl
var noteTemplates embed.FS

// copied maps an embedded template to its destination inside the lab
var copied = map[string]string{
	"files/notes/reminders.md.tmpl": "notes/reminders.md",
	"files/notes/checklist.md.tmpl": "notes/checklist.md",
}
