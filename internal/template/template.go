// Package template renders the placeholder strings used for tag names,
// commit messages, and file replacements.
//
// Templates use {{name}} placeholders. Only placeholders whose value is set
// in the [Context] are substituted; unknown or unset placeholders are left
// in the output verbatim. This is deliberate: a typo in a user's tag-name
// template should surface in the rendered string, not error out mid-release.
package template

import "strings"

// Context holds the values available to a template. Empty fields are treated
// as unset and their placeholders pass through unchanged.
//
// A fresh Context is built for every package and every pipeline phase; the
// fields that make sense differ per call site (e.g. NextVersion only exists
// during the post-release bump).
type Context struct {
	// PrevVersion is the version released by the previous tag.
	PrevVersion string

	// Version is the version being acted on in the current phase.
	Version string

	// NextVersion is the post-release development version.
	NextVersion string

	// CrateName is the package name.
	CrateName string

	// TagName is the rendered release tag, once known.
	TagName string

	// Prefix is the rendered tag prefix.
	Prefix string

	// Date is the run date in YYYY-MM-DD form, captured once per invocation.
	Date string
}

// placeholders maps placeholder names to Context field accessors.
var placeholders = []struct {
	name string
	get  func(*Context) string
}{
	{"prev_version", func(c *Context) string { return c.PrevVersion }},
	{"version", func(c *Context) string { return c.Version }},
	{"next_version", func(c *Context) string { return c.NextVersion }},
	{"crate_name", func(c *Context) string { return c.CrateName }},
	{"tag_name", func(c *Context) string { return c.TagName }},
	{"prefix", func(c *Context) string { return c.Prefix }},
	{"date", func(c *Context) string { return c.Date }},
}

// Render substitutes every set placeholder in tmpl and returns the result.
func (c *Context) Render(tmpl string) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	out := tmpl
	for _, p := range placeholders {
		if v := p.get(c); v != "" {
			out = strings.ReplaceAll(out, "{{"+p.name+"}}", v)
		}
	}
	return out
}
