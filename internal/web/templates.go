package web

import (
	"html/template"
	"io/fs"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const displayTimeLayout = "2006-01-02 15:04"

// LoadTemplates parses every templates/*.html file in filesystem.
func LoadTemplates(filesystem fs.FS) (*template.Template, error) {
	return template.New("pages").Funcs(templateFuncs()).ParseFS(filesystem, "templates/*.html")
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatTime":  formatTime,
		"credits":     formatCredits,
		"statusLabel": statusLabel,
		"join":        strings.Join,
	}
}

func formatTime(value any) string {
	switch typed := value.(type) {
	case time.Time:
		if typed.IsZero() {
			return ""
		}
		return typed.UTC().Format(displayTimeLayout)
	case *time.Time:
		if typed == nil {
			return ""
		}
		return formatTime(*typed)
	default:
		return ""
	}
}

func formatCredits(credits float64) string {
	return strconv.FormatFloat(credits, 'f', -1, 64)
}

// statusLabel turns "in_progress" into "In progress".
func statusLabel(status string) string {
	label := strings.ReplaceAll(strings.TrimSpace(status), "_", " ")
	if label == "" {
		return ""
	}
	runes := []rune(label)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
