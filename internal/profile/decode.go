package profile

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/kirbytools/buildwatch/internal/errors"
)

// DecodeDefinitions converts loosely typed configuration (as produced by
// viper or a YAML document) into definitions. Entries are decoded one by one:
// a malformed entry is reported and skipped without affecting its siblings.
//
// A single string is accepted wherever a pattern list is expected.
func DecodeDefinitions(raw map[string]any) (map[string]Definition, []error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	defs := make(map[string]Definition, len(raw))
	var errs []error
	for _, key := range keys {
		var def Definition
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &def,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			errs = append(errs, errors.NewProfileError(key, "", err))
			continue
		}
		if err := dec.Decode(raw[key]); err != nil {
			errs = append(errs, errors.NewProfileError(key, "", err))
			continue
		}
		defs[key] = def
	}
	return defs, errs
}

// fileDocument is the on-disk layout of a profiles file.
type fileDocument struct {
	Tools map[string]any `yaml:"tools"`
}

// LoadFile reads a YAML profiles file from fsys:
//
//	tools:
//	  kirbyup:
//	    detect: 'kirbyup v\d'
//	    success: 'build complete'
//
// Decoding errors for individual entries are returned alongside the
// definitions that did decode. A read or YAML syntax error fails the whole
// file.
func LoadFile(fsys afero.Fs, path string) (map[string]Definition, []error, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, nil, fmt.Errorf("read profiles file: %w", err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}
	defs, errs := DecodeDefinitions(doc.Tools)
	return defs, errs, nil
}
