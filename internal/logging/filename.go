package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/go-sprout/sprout"
	"github.com/go-sprout/sprout/registry/std"
	sproutstrings "github.com/go-sprout/sprout/registry/strings"
)

const logExt = ".log"

// ParseFileName parses a log file name template. Besides the sprout std and
// strings registries it provides now, hostname, pid and envDefault.
func ParseFileName(text string) (*template.Template, error) {
	return parseFileName(text, time.Now())
}

func parseFileName(text string, now time.Time) (*template.Template, error) {
	funcMap, err := buildFuncMap(now)
	if err != nil {
		return nil, fmt.Errorf("building template functions: %w", err)
	}
	tmpl, err := template.New("file_name").Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing log file name: %w", err)
	}
	return tmpl, nil
}

// RenderFileName renders the template for a run started at now. The result
// is a bare file name; ".log" is appended when missing.
func RenderFileName(text string, now time.Time) (string, error) {
	tmpl, err := parseFileName(text, now)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("rendering log file name: %w", err)
	}

	name := strings.TrimSpace(buf.String())
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("log file name %q is empty", name)
	case strings.ContainsAny(name, `/\`):
		return "", fmt.Errorf("log file name %q must not contain a path separator", name)
	case name == latestName:
		return "", fmt.Errorf("log file name %q is reserved", name)
	}
	if filepath.Ext(name) != logExt {
		name += logExt
	}
	return name, nil
}

func buildFuncMap(now time.Time) (template.FuncMap, error) {
	handler := sprout.New()

	if err := handler.AddRegistries(
		std.NewRegistry(),
		sproutstrings.NewRegistry(),
	); err != nil {
		return nil, err
	}

	funcMap := handler.Build()

	funcMap["now"] = func() time.Time { return now }
	funcMap["hostname"] = hostnameFunc
	funcMap["pid"] = os.Getpid
	funcMap["envDefault"] = envDefaultFunc

	return funcMap, nil
}

func hostnameFunc() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	// Short name only.
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

func envDefaultFunc(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
