// Package discovery enumerates service modules installed under a namespace
// package by walking Python package roots. Nothing is imported or executed.
//
// Overview:
//   - Responsibility: Find <namespace>.<svc>.<entry> modules on disk
//   - Key Types: Service, Discoverer
//   - Concurrency Model: Lazy, single-consumer sequence
//   - Error Semantics: Unreadable or missing directories yield nothing
//   - Performance Notes: One ReadDir per root plus one Stat per candidate
//
// Usage:
//
//	d := discovery.New("ab_service", "main", roots)
//	for svc := range d.Services() {
//	    fmt.Println(svc.Module)
//	}
package discovery

import (
	"bufio"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
)

// Service describes one discovered service module.
type Service struct {
	Name   string `json:"name"`   // service directory name, e.g. user_profile
	Module string `json:"module"` // dotted module path, e.g. ab_service.user_profile.main
	Root   string `json:"root"`   // package root it was found under
	Dir    string `json:"dir"`    // service package directory
}

// Discoverer finds services of one namespace across package roots.
type Discoverer struct {
	namespace string
	entry     string
	roots     []string
	logger    log.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithLogger sets the diagnostic logger.
func WithLogger(logger log.Logger) Option {
	return func(d *Discoverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Discoverer. roots are searched in order after .pth expansion.
func New(namespace, entry string, roots []string, opts ...Option) *Discoverer {
	d := &Discoverer{
		namespace: namespace,
		entry:     entry,
		roots:     ExpandRoots(roots),
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Roots returns the package roots after .pth expansion.
func (d *Discoverer) Roots() []string {
	return append([]string(nil), d.roots...)
}

// Services returns a lazy sequence of the namespace's services. A namespace
// that is not installed produces an empty sequence. When the same service
// appears under several roots, the first root wins.
func (d *Discoverer) Services() iter.Seq[Service] {
	return func(yield func(Service) bool) {
		seen := make(map[string]string)
		nsRel := filepath.Join(strings.Split(d.namespace, ".")...)

		for _, root := range d.roots {
			nsDir := filepath.Join(root, nsRel)
			entries, err := os.ReadDir(nsDir)
			if err != nil {
				continue
			}

			for _, entry := range entries {
				name := entry.Name()
				if !configschema.IsIdentifier(name) {
					continue
				}
				dir := filepath.Join(nsDir, name)
				if !isDir(dir) || !d.hasEntry(dir) {
					continue
				}
				if first, dup := seen[name]; dup {
					d.logger.Debug("service shadowed by earlier root",
						log.Str("service", name), log.Str("root", root), log.Str("winner", first))
					continue
				}
				seen[name] = root

				svc := Service{
					Name:   name,
					Module: d.namespace + "." + name + "." + d.entry,
					Root:   root,
					Dir:    dir,
				}
				if !yield(svc) {
					return
				}
			}
		}
	}
}

// Collect drains the sequence into a slice.
func (d *Discoverer) Collect() []Service {
	var out []Service
	for svc := range d.Services() {
		out = append(out, svc)
	}
	return out
}

func (d *Discoverer) hasEntry(dir string) bool {
	if info, err := os.Stat(filepath.Join(dir, d.entry+".py")); err == nil && !info.IsDir() {
		return true
	}
	if info, err := os.Stat(filepath.Join(dir, d.entry, "__init__.py")); err == nil && !info.IsDir() {
		return true
	}
	return false
}

// ExpandRoots returns roots followed by the directories named in their .pth
// files, with duplicates and missing directories removed. Lines starting with
// "import" and comments are ignored.
func ExpandRoots(roots []string) []string {
	var (
		out   []string
		extra []string
		seen  = make(map[string]bool)
	)
	add := func(list *[]string, dir string) {
		clean := filepath.Clean(dir)
		if seen[clean] || !isDir(clean) {
			return
		}
		seen[clean] = true
		*list = append(*list, clean)
	}

	for _, root := range roots {
		add(&out, root)
	}
	for _, root := range out {
		for _, dir := range pthDirs(root) {
			add(&extra, dir)
		}
	}
	return append(out, extra...)
}

func pthDirs(root string) []string {
	files, _ := filepath.Glob(filepath.Join(root, "*.pth"))
	sort.Strings(files)

	var dirs []string
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") ||
				strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "import\t") {
				continue
			}
			if !filepath.IsAbs(line) {
				line = filepath.Join(root, line)
			}
			dirs = append(dirs, line)
		}
		f.Close()
	}
	return dirs
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
