// Command gen-functions regenerates the operation-name table and the host
// library manifest from the entry points of the host kernel module.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"text/template"

	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/internal/kernels"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var registryTemplate = template.Must(template.New("functions").Parse(`// Code generated by gen-functions from the kernel module sources. DO NOT EDIT.

package registry

// functionNames lists every kernel entry point. The index of a name is its
// OperationID.
var functionNames = [...]string{
{{- range .}}
	{{printf "%q" .}},
{{- end}}
}
`))

func registrySource(names []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := registryTemplate.Execute(&buf, names); err != nil {
		return nil, err
	}
	return format.Source(buf.Bytes())
}

func hostManifest(names []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# Host kernel library manifest. Generated by gen-functions; do not edit.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(struct {
		Format    string   `yaml:"format"`
		Functions []string `yaml:"functions"`
	}{gpu.HostLibraryVersion, names})
	if err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "gen-functions",
		Usage: "Generate the operation-name table and host library manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "registry", Usage: "Output path of the Go name table"},
			&cli.StringFlag{Name: "hostlib", Usage: "Output path of the host library manifest"},
		},
		Action: func(c *cli.Context) error {
			names := kernels.Names()
			if path := c.String("registry"); path != "" {
				src, err := registrySource(names)
				if err != nil {
					return fmt.Errorf("failed to render name table: %w", err)
				}
				if err := os.WriteFile(path, src, 0o644); err != nil {
					return err
				}
			}
			if path := c.String("hostlib"); path != "" {
				data, err := hostManifest(names)
				if err != nil {
					return fmt.Errorf("failed to render host manifest: %w", err)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return err
				}
			}
			fmt.Fprintf(c.App.Writer, "%d entry points\n", len(names))
			return nil
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
