// Package config loads an optional HCL run configuration for swanspm.
//
// All attributes are optional and override the defaults of the build
// package. Environment variables are available as env.NAME:
//
//	staging = "${env.TMPDIR}/swan-dir"
//	timeout = "10m"
package config

import (
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/nickng/swanspm/manifest"
	"github.com/nickng/swanspm/sil"
	"github.com/nickng/swanspm/sil/build"
	"github.com/nickng/swanspm/stage"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// DefaultFile is looked up in the package directory when no file is given.
const DefaultFile = "swanspm.hcl"

// File is the decoded run configuration.
type File struct {
	Manifest   string `hcl:"manifest,optional"`
	Token      string `hcl:"token,optional"`
	Sources    string `hcl:"sources,optional"`
	Extension  string `hcl:"extension,optional"`
	Staging    string `hcl:"staging,optional"`
	Log        string `hcl:"log,optional"`
	Output     string `hcl:"output,optional"`
	Marker     string `hcl:"marker,optional"`
	Terminator string `hcl:"terminator,optional"`
	Timeout    string `hcl:"timeout,optional"`
	Clean      *bool  `hcl:"clean,optional"`
	Tool       string `hcl:"tool,optional"`
}

// Load decodes the configuration file at path.
func Load(path string) (*File, error) {
	var f File
	if err := hclsimple.DecodeFile(path, evalContext(os.Environ()), &f); err != nil {
		return nil, errors.Wrapf(err, "cannot load configuration %s", path)
	}
	if f.Timeout != "" {
		if _, err := time.ParseDuration(f.Timeout); err != nil {
			return nil, errors.Wrapf(err, "%s: bad timeout", path)
		}
	}
	return &f, nil
}

// evalContext exposes environ as the env object.
func evalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range environ {
		i := strings.IndexByte(kv, '=')
		if i <= 0 || !utf8.ValidString(kv) {
			continue
		}
		vars[kv[:i]] = cty.StringVal(kv[i+1:])
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

// Apply sets every attribute present in f on conf.
func (f *File) Apply(conf build.Configurer) build.Configurer {
	if f.Manifest != "" || f.Token != "" {
		conf = conf.WithManifest(orDefault(f.Manifest, manifest.DefaultPath), orDefault(f.Token, manifest.DefaultToken))
	}
	if f.Sources != "" || f.Extension != "" {
		conf = conf.WithSources(orDefault(f.Sources, build.DefaultSources), orDefault(f.Extension, stage.DefaultExt))
	}
	if f.Staging != "" {
		conf = conf.WithStaging(f.Staging)
	}
	if f.Log != "" {
		conf = conf.WithLogPath(f.Log)
	}
	if f.Output != "" {
		conf = conf.WithOutputPath(f.Output)
	}
	if f.Marker != "" || f.Terminator != "" {
		conf = conf.WithMarker(orDefault(f.Marker, sil.DefaultMarker), orDefault(f.Terminator, sil.DefaultTerminator))
	}
	if f.Timeout != "" {
		d, _ := time.ParseDuration(f.Timeout) // Checked by Load.
		conf = conf.WithTimeout(d)
	}
	if f.Clean != nil {
		conf = conf.WithCleanFirst(*f.Clean)
	}
	if f.Tool != "" {
		conf = conf.WithTool(f.Tool)
	}
	return conf
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
