package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// TemplatesDirName is the conventional name of a template directory.
const TemplatesDirName = "templates"

// FindTemplatesDir looks upwards from startDir for a "templates" directory
// and returns its absolute path, or "" when none exists up to the
// filesystem root.
func FindTemplatesDir(startDir string) string {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	dir := abs
	for {
		if isDir(filepath.Join(dir, TemplatesDirName)) {
			return filepath.Join(dir, TemplatesDirName)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// DefaultTemplateDirs lists where templates are searched by default:
// the directories in TMPLTR_TEMPLATES, the nearest "templates" directory
// above the working directory, and the user config directory.
func DefaultTemplateDirs() []string {
	var dirs []string
	if env := os.Getenv(EnvTemplateDirs); env != "" {
		for _, d := range filepath.SplitList(env) {
			if strings.TrimSpace(d) != "" {
				dirs = append(dirs, d)
			}
		}
	}
	if wd, err := os.Getwd(); err == nil {
		if d := FindTemplatesDir(wd); d != "" {
			dirs = append(dirs, d)
		}
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(cfg, "tmpltr", TemplatesDirName))
	}
	return dirs
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
