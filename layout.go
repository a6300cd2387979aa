package main

import (
	"io"
	"text/template"

	"dskimg/imaging"
)

const layoutTmpl = `Partition table: {{.Scheme}}{{if .DiskGUID}} (disk {{.DiskGUID}}){{end}}
{{- if .Filesystem}}
Filesystem: {{.Filesystem}}
{{- end}}
{{- range .Containers}}
Container: {{.}}
{{- end}}
{{- range .Partitions}}
  {{.Number}}. {{if .Logical}}(logical) {{end}}Type: {{.Type}}{{if .Name}}, Name: {{.Name}}{{end}}, FirstSector: {{.FirstLBA}}, Sectors: {{.Sectors}}, FileSystem: {{.Filesystem}}, Total: {{size .Size}}{{if .Bootable}}, bootable{{end}}{{range .Containers}}, Container: {{.}}{{end}}
{{- end}}
{{- range .Warnings}}
  Warning: {{.}}
{{- end}}
`

var layoutTemplate = template.Must(template.New("layout").
	Funcs(template.FuncMap{"size": formatBytes[uint64]}).
	Parse(layoutTmpl))

func printLayout(w io.Writer, layout *imaging.Layout) error {
	return layoutTemplate.Execute(w, layout)
}
