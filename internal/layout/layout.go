// Package layout derives per-service names and artifact paths.
//
// Names are fixed functions of the service directory name; paths are
// text/template strings from the configuration rendered against Names.
package layout

import (
	"bytes"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
)

// Names holds the identifiers derived from one service.
type Names struct {
	Module      string // user_profile
	Package     string // user-profile
	ServiceName string // service-user-profile
	ClientName  string // client-user-profile
	ModulePath  string // ab_service.user_profile.main
}

// NamesFor derives Names for service svc under namespace ns with entry module entry.
func NamesFor(ns, svc, entry string) Names {
	pkg := strings.ReplaceAll(svc, "_", "-")
	return Names{
		Module:      svc,
		Package:     pkg,
		ServiceName: "service-" + pkg,
		ClientName:  "client-" + pkg,
		ModulePath:  ns + "." + svc + "." + entry,
	}
}

// Render executes a path or argument template against data. Missing keys are errors.
func Render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", errors.Wrapf(errors.CodeInvalidArgument, "layout.render", err, "invalid template %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(errors.CodeInvalidArgument, "layout.render", err, "cannot render %s", name)
	}
	return buf.String(), nil
}

// Resolve renders text and joins the result to root unless it is absolute.
func Resolve(root, name, text string, data any) (string, error) {
	p, err := Render(name, text, data)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	return filepath.Join(root, p), nil
}
