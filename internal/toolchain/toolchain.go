// Package toolchain locates the Puppet installation used to run the
// editor service.
package toolchain

import (
	"context"
	"errors"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/spf13/afero"

	"github.com/dshills/puppetext/internal/settings"
)

// ErrNotFound is returned when no installation exists at the base directory.
var ErrNotFound = errors.New("puppet installation not found")

// Layout is the kind of installation found.
type Layout string

const (
	LayoutPDK   Layout = "pdk"
	LayoutAgent Layout = "agent"
)

// Paths describes the files of one installation. All paths are absolute.
type Paths struct {
	Layout               Layout
	BaseDir              string
	PuppetDir            string
	RubyDir              string
	RubyExecutable       string
	LanguageServerScript string

	goos string
}

// Locator resolves installation paths for a settings snapshot.
type Locator struct {
	fs           afero.Fs
	goos         string
	env          func(string) string
	extensionDir string
}

// Option configures a Locator.
type Option func(*Locator)

// WithFs sets the filesystem used for existence checks.
func WithFs(fs afero.Fs) Option {
	return func(l *Locator) { l.fs = fs }
}

// WithGOOS overrides the target operating system.
func WithGOOS(goos string) Option {
	return func(l *Locator) { l.goos = goos }
}

// WithEnv overrides environment lookup, used for %ProgramFiles%.
func WithEnv(getenv func(string) string) Option {
	return func(l *Locator) { l.env = getenv }
}

// WithExtensionDir sets the directory holding the bundled language server.
// When unset the server is looked up under the installation's base directory.
func WithExtensionDir(dir string) Option {
	return func(l *Locator) { l.extensionDir = dir }
}

// NewLocator creates a locator for the running platform.
func NewLocator(opts ...Option) *Locator {
	l := &Locator{
		fs:   afero.NewOsFs(),
		goos: runtime.GOOS,
		env:  os.Getenv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate computes the installation paths for s. It does not check that the
// installation exists; use Exists for that.
func (l *Locator) Locate(s settings.Snapshot) Paths {
	base := s.InstallDirectory
	layout := LayoutAgent

	switch s.InstallType {
	case settings.InstallPDK:
		layout = LayoutPDK
	case settings.InstallAgent:
		layout = LayoutAgent
	default:
		if base == "" && l.dirExists(l.defaultBase(LayoutPDK)) {
			layout = LayoutPDK
		} else if base != "" && l.dirExists(l.join(base, "private", "puppet")) {
			layout = LayoutPDK
		}
	}
	if base == "" {
		base = l.defaultBase(layout)
	}

	p := Paths{Layout: layout, BaseDir: base, goos: l.goos}
	switch layout {
	case LayoutPDK:
		p.PuppetDir = l.join(base, "private", "puppet")
		p.RubyDir = l.join(base, "private", "ruby")
	default:
		p.PuppetDir = l.join(base, "puppet")
		if l.goos == "windows" {
			p.RubyDir = l.join(base, "sys", "ruby")
		} else {
			p.RubyDir = l.join(base, "puppet")
		}
	}
	ruby := "ruby"
	if l.goos == "windows" {
		ruby = "ruby.exe"
	}
	p.RubyExecutable = l.join(p.RubyDir, "bin", ruby)

	serverRoot := l.extensionDir
	if serverRoot == "" {
		serverRoot = base
	}
	p.LanguageServerScript = l.join(serverRoot, "vendor", "languageserver", "puppet-languageserver")
	return p
}

// Exists reports whether the installation base directory is present.
func (l *Locator) Exists(ctx context.Context, p Paths) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.BaseDir == "" {
		return false, nil
	}
	info, err := l.fs.Stat(p.BaseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (l *Locator) defaultBase(layout Layout) string {
	if l.goos == "windows" {
		programFiles := l.env("ProgramFiles")
		if programFiles == "" {
			programFiles = `C:\Program Files`
		}
		if layout == LayoutPDK {
			return l.join(programFiles, "Puppet Labs", "DevelopmentKit")
		}
		return l.join(programFiles, "Puppet Labs", "Puppet")
	}
	if layout == LayoutPDK {
		return "/opt/puppetlabs/pdk"
	}
	return "/opt/puppetlabs"
}

func (l *Locator) dirExists(dir string) bool {
	ok, err := afero.DirExists(l.fs, dir)
	return err == nil && ok
}

// join uses the target platform separator so paths for Windows can be
// computed on any host.
func (l *Locator) join(elem ...string) string {
	if l.goos == "windows" {
		return strings.Join(elem, `\`)
	}
	return path.Join(elem...)
}

// Environment returns base with the installation's variables applied:
// binary directories prepended to PATH plus RUBYLIB and SSL certificate
// locations. base is a list of KEY=VALUE pairs such as os.Environ().
func (p Paths) Environment(base []string) []string {
	sep, listSep := "/", ":"
	if p.goos == "windows" {
		sep, listSep = `\`, ";"
	}
	join := func(elem ...string) string { return strings.Join(elem, sep) }

	env := make(map[string]string, len(base))
	order := make([]string, 0, len(base))
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		if _, seen := env[k]; !seen {
			order = append(order, k)
		}
		env[k] = v
	}
	set := func(k, v string) {
		if _, seen := env[k]; !seen {
			order = append(order, k)
		}
		env[k] = v
	}

	bins := []string{join(p.PuppetDir, "bin"), join(p.RubyDir, "bin")}
	pathKey := "PATH"
	for _, k := range order {
		if strings.EqualFold(k, "PATH") {
			pathKey = k
			break
		}
	}
	pathValue := strings.Join(bins, listSep)
	if cur := env[pathKey]; cur != "" {
		pathValue += listSep + cur
	}
	set(pathKey, pathValue)

	rubyLib := join(p.PuppetDir, "lib")
	if cur := env["RUBYLIB"]; cur != "" {
		rubyLib += listSep + cur
	}
	set("RUBYLIB", rubyLib)
	set("SSL_CERT_FILE", join(p.PuppetDir, "ssl", "cert.pem"))
	set("SSL_CERT_DIR", join(p.PuppetDir, "ssl", "certs"))

	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+env[k])
	}
	return out
}
