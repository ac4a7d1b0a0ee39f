// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diagnosticsfmt

import (
	"bytes"
	"html/template"

	"github.com/ibuildlang/ibuild/internal/program"
)

// Report is the data model rendered by reportTemplate: every file's
// diagnostics, already grouped and with embedded URLs extracted.
type Report struct {
	Title  string
	Groups []Grouped
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if not .Groups}}<p>No diagnostics.</p>{{end}}
{{range .Groups}}
<section>
<h2>{{if .File}}{{.File}}{{else}}(program){{end}}</h2>
<ul>
{{range .Diagnostics}}<li>{{if .Line}}{{.Line}}:{{.Column}}: {{end}}<strong>{{.Severity}}</strong>: {{.Message}}</li>
{{end}}
</ul>
{{if .SeeAlso}}
<p>See also:</p>
<ul>{{range .SeeAlso}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>
{{end}}
</section>
{{end}}
</body>
</html>
`))

// HTML renders diags as a standalone HTML report titled title.
func HTML(title string, diags []program.Diagnostic) (string, error) {
	var buf bytes.Buffer
	report := Report{Title: title, Groups: Group(diags)}
	if err := reportTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}
