// Package declfile loads exchange declarations from YAML or TOML files.
//
// A file lists the declarations of one client:
//
//	base_url: http://localhost:8080
//	declarations:
//	  - name: getGreeting
//	    method: GET
//	    path: /greeting/{id}
//	    shape: entity
//	    params:
//	      - {name: id, in: path}
//	      - {name: param, in: query, omit_empty: true}
package declfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/jsxtech/exchange"
)

var validate = validator.New()

// File is the parsed content of a declaration file.
type File struct {
	BaseURL      string        `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	Declarations []Declaration `yaml:"declarations" toml:"declarations" validate:"required,min=1,dive"`
}

// Declaration is one entry of a declaration file.
type Declaration struct {
	Name        string  `yaml:"name" toml:"name" validate:"required"`
	Method      string  `yaml:"method" toml:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Path        string  `yaml:"path" toml:"path" validate:"required"`
	Shape       string  `yaml:"shape" toml:"shape" validate:"omitempty,oneof=scalar future stream entity"`
	Accept      string  `yaml:"accept" toml:"accept"`
	ContentType string  `yaml:"content_type" toml:"content_type"`
	Params      []Param `yaml:"params" toml:"params" validate:"dive"`
}

// Param is one parameter binding of a Declaration.
type Param struct {
	Name      string `yaml:"name" toml:"name" validate:"required"`
	In        string `yaml:"in" toml:"in" validate:"required,oneof=path query header attribute uri factory body"`
	Required  bool   `yaml:"required" toml:"required"`
	OmitEmpty bool   `yaml:"omit_empty" toml:"omit_empty"`
}

// Format is a declaration file encoding.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return "", fmt.Errorf("%s: unknown declaration file extension, want .yaml, .yml or .toml", path)
}

// Load reads and validates the declaration file at path.
func Load(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a declaration file.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	case TOML:
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, exchange.AsError(err)
	}
	return &f, nil
}

// ToDeclarations converts the file entries to exchange declarations.
// Errors for all entries are reported together.
func (f *File) ToDeclarations() ([]*exchange.Declaration, error) {
	var (
		out  []*exchange.Declaration
		errs []error
	)
	for _, d := range f.Declarations {
		decl, err := d.toDeclaration()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		out = append(out, decl)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (d Declaration) toDeclaration() (*exchange.Declaration, error) {
	shape, err := exchange.ParseShape(d.Shape)
	if err != nil {
		return nil, err
	}
	decl := exchange.NewDeclaration(d.Name, d.Method, d.Path).Returning(shape)
	decl.Accept = d.Accept
	decl.ContentType = d.ContentType
	for _, p := range d.Params {
		kind, err := exchange.ParseParamKind(p.In)
		if err != nil {
			return nil, err
		}
		decl.WithParam(exchange.Param{
			Name:      p.Name,
			Kind:      kind,
			Required:  p.Required || kind == exchange.ParamPath,
			OmitEmpty: p.OmitEmpty,
		})
	}
	return decl, nil
}
