// Package autostart registers the launcher to start at login: a LaunchAgent
// on macOS, an XDG autostart entry on Linux and a Run key value on Windows.
package autostart

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// ErrNotEnabled is returned by Disable when no login entry exists.
var ErrNotEnabled = errors.New("autostart is not enabled")

// Autostart manages one login entry.
type Autostart interface {
	IsEnabled() bool
	Enable() error
	Disable() error
	// Location describes where the entry lives (file path or registry value).
	Location() string
}

var executableFn = os.Executable

// New returns the login entry for name on this platform. args are passed to
// the executable when it starts.
func New(name string, args ...string) Autostart {
	return newPlatform(name, args)
}

// program resolves the running executable to an absolute, symlink-free path
// and appends args.
func program(args []string) ([]string, error) {
	exe, err := executableFn()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	exe, err = filepath.Abs(exe)
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return append([]string{exe}, args...), nil
}

var plistTemplate = template.Must(template.New("plist").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{xml .Label}}</string>
    <key>ProgramArguments</key>
    <array>
{{- range .Args}}
        <string>{{xml .}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
    <key>StandardOutPath</key>
    <string>{{xml .StdoutPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{xml .StderrPath}}</string>
</dict>
</plist>
`))

type plistData struct {
	Label      string
	Args       []string
	StdoutPath string
	StderrPath string
}

func renderPlist(data plistData) ([]byte, error) {
	var buf bytes.Buffer
	if err := plistTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render plist: %w", err)
	}
	return buf.Bytes(), nil
}

func xmlEscape(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderDesktopEntry returns an XDG autostart entry for args.
func renderDesktopEntry(name string, args []string) []byte {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", name)
	b.WriteString("Comment=Leader-key application launcher\n")
	fmt.Fprintf(&b, "Exec=%s\n", desktopExec(args))
	b.WriteString("Terminal=false\n")
	b.WriteString("NoDisplay=true\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return []byte(b.String())
}

// desktopExec quotes args per the Desktop Entry Exec rules.
func desktopExec(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`=") {
			quoted[i] = strings.ReplaceAll(arg, "%", "%%")
			continue
		}
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`, "%", "%%")
		quoted[i] = `"` + r.Replace(arg) + `"`
	}
	return strings.Join(quoted, " ")
}

// windowsCommandLine joins args for a Run key value. Arguments containing
// spaces or quotes are wrapped in double quotes.
func windowsCommandLine(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if arg != "" && !strings.ContainsAny(arg, " \t\"") {
			parts[i] = arg
			continue
		}
		parts[i] = `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
	}
	return strings.Join(parts, " ")
}

// writeFileAtomic writes data to a temp file in the target directory, then
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// removeEntry deletes path, mapping a missing file to ErrNotEnabled.
func removeEntry(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotEnabled
		}
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
