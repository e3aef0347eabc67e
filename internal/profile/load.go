package profile

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/homebrewnlp/launchpad/internal/ctxlog"
	"github.com/homebrewnlp/launchpad/internal/fsutil"
)

// hclFile is the top-level structure of a launch-config file for decoding.
type hclFile struct {
	Profiles []*hclProfile `hcl:"profile,block"`
}

// hclProfile mirrors a single `profile "<name>"` block. Env is kept as a
// cty.Value so users can write numbers and bools without quoting them.
type hclProfile struct {
	Name     string    `hcl:"name,label"`
	Inherits string    `hcl:"inherits,optional"`
	Command  string    `hcl:"command,optional"`
	Args     []string  `hcl:"args,optional"`
	Env      cty.Value `hcl:"env,optional"`
}

// Builtin returns a Set holding only the built-in default profile.
func Builtin() *Set {
	return &Set{
		profiles:    map[string]*rawProfile{DefaultName: builtin()},
		userDefined: map[string]bool{},
	}
}

// Load parses every .hcl file under configPath into a Set. The built-in
// default profile is part of the result; a user-defined "default" replaces
// it, while any other duplicate name is an error.
func Load(ctx context.Context, configPath string) (*Set, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading launch config.", "path", configPath)

	files, err := fsutil.FindFilesByExtension(configPath, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find launch config files in %s: %w", configPath, err)
	}

	set := Builtin()
	if len(files) == 0 {
		logger.Warn("No .hcl files found in config path, using built-in profiles only.", "path", configPath)
		return set, nil
	}

	parser := hclparse.NewParser()
	for _, file := range files {
		if err := set.loadFile(file, parser); err != nil {
			return nil, err
		}
	}
	logger.Debug("Launch config loaded.", "profiles", set.Names())
	return set, nil
}

func (s *Set) loadFile(filePath string, parser *hclparse.Parser) error {
	hclF, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %s", filePath, diags.Error())
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(hclF.Body, nil, &parsed)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %s", filePath, diags.Error())
	}

	for _, block := range parsed.Profiles {
		raw, err := newRawProfile(block)
		if err != nil {
			return fmt.Errorf("invalid profile %q in %s: %w", block.Name, filePath, err)
		}
		// A user-defined "default" may replace the built-in one, but no
		// name may be declared twice across config files.
		if s.userDefined[raw.name] {
			return fmt.Errorf("duplicate profile %q declared in %s", raw.name, filePath)
		}
		if _, exists := s.profiles[raw.name]; exists && raw.name != DefaultName {
			return fmt.Errorf("duplicate profile %q declared in %s", raw.name, filePath)
		}
		s.userDefined[raw.name] = true
		s.profiles[raw.name] = raw
	}
	return nil
}

func newRawProfile(block *hclProfile) (*rawProfile, error) {
	if block.Name == "" {
		return nil, fmt.Errorf("profile name must not be empty")
	}
	env, err := envFromCty(block.Env)
	if err != nil {
		return nil, err
	}
	return &rawProfile{
		name:     block.Name,
		inherits: block.Inherits,
		command:  block.Command,
		args:     block.Args,
		env:      env,
	}, nil
}

// envFromCty converts the `env` attribute value to a string map. Primitive
// non-string values (numbers, bools) are converted to their string form so
// thresholds and toggles can be written bare.
func envFromCty(val cty.Value) (map[string]string, error) {
	env := map[string]string{}
	if val.IsNull() || !val.IsKnown() {
		return env, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("env must be a map of variable names to values, got %s", val.Type().FriendlyName())
	}

	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		converted, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, fmt.Errorf("env %s: value is not convertible to a string: %w", k.AsString(), err)
		}
		if converted.IsNull() {
			return nil, fmt.Errorf("env %s: value must not be null", k.AsString())
		}
		env[k.AsString()] = converted.AsString()
	}
	return env, nil
}
