// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// gen_kb converts a reflection dump of the autosarfactory API surface
// into the knowledge base YAML the validator loads.
//
// Usage:
//
//	go run scripts/gen_kb.go -in autosarfactory_dump.json -out kb.yaml
//
// The dump is the JSON produced by introspecting the Python package:
// one entry per class listing its new_* factories (positional
// parameter types and constructed class) and set_* setters (value
// type). The generator normalizes Python type names to KB type tags,
// drops private and dunder methods, and refuses to write a KB that
// fails the loader's integrity checks.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veloxar/arxval/services/validator/schema"
)

// =============================================================================
// Dump Types
// =============================================================================

// apiDump is the root of the reflection dump.
type apiDump struct {
	Version string      `json:"version"`
	Classes []classDump `json:"classes"`
}

// classDump is one introspected class.
type classDump struct {
	Name      string       `json:"name"`
	Factories []methodDump `json:"factories"`
	Setters   []setterDump `json:"setters"`
}

// methodDump is one new_* factory as the introspector saw it.
type methodDump struct {
	Name    string   `json:"name"`
	Params  []string `json:"params"`
	Returns string   `json:"returns"`
}

// setterDump is one set_* method with its single value type.
type setterDump struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// =============================================================================
// KB Output Types
// =============================================================================

// kbFile mirrors the loader's wire format.
type kbFile struct {
	Version string             `yaml:"version"`
	Classes map[string]kbClass `yaml:"classes"`
}

type kbClass struct {
	Factories map[string]kbMethod `yaml:"factories,omitempty"`
	Setters   map[string]string   `yaml:"setters,omitempty"`
}

type kbMethod struct {
	Params  []string `yaml:"params"`
	Returns string   `yaml:"returns"`
}

func main() {
	inPath := flag.String("in", "autosarfactory_dump.json", "Reflection dump JSON")
	outPath := flag.String("out", "kb.yaml", "Knowledge base YAML to write")
	version := flag.String("version", "", "Override the dump's KB version")
	flag.Parse()

	data, err := os.ReadFile(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *inPath, err)
		os.Exit(1)
	}

	var dump apiDump
	if err := json.Unmarshal(data, &dump); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", *inPath, err)
		os.Exit(1)
	}

	if *version != "" {
		dump.Version = *version
	}
	if dump.Version == "" {
		dump.Version = "1.0.0"
	}

	kb, skipped := convert(dump)

	out, err := yaml.Marshal(kb)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling KB: %v\n", err)
		os.Exit(1)
	}

	// Run the generated bytes through the real loader so a broken dump
	// can never produce a KB the service would reject.
	s, err := schema.LoadBytes(context.Background(), out, *inPath)
	if err != nil {
		var batch *schema.BatchError
		if errors.As(err, &batch) {
			fmt.Fprintf(os.Stderr, "Generated KB fails integrity checks:\n%s\n", batch.ErrorList())
		} else {
			fmt.Fprintf(os.Stderr, "Generated KB does not load: %v\n", err)
		}
		os.Exit(1)
	}

	if err := os.WriteFile(*outPath, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s: version %s, %d classes, %d methods",
		*outPath, s.Version(), s.ClassCount(), s.Index().Size())
	if skipped > 0 {
		fmt.Printf(" (%d methods skipped)", skipped)
	}
	fmt.Println()
}

// convert maps the dump onto the KB wire format, returning the KB and
// the number of methods dropped as private or untypeable.
func convert(dump apiDump) (kbFile, int) {
	kb := kbFile{
		Version: dump.Version,
		Classes: make(map[string]kbClass, len(dump.Classes)),
	}

	skipped := 0
	for _, c := range dump.Classes {
		if c.Name == "" || strings.HasPrefix(c.Name, "_") {
			continue
		}

		entry := kbClass{
			Factories: make(map[string]kbMethod),
			Setters:   make(map[string]string),
		}

		for _, m := range c.Factories {
			if skipMethod(m.Name) {
				skipped++
				continue
			}
			params := make([]string, len(m.Params))
			ok := true
			for i, p := range m.Params {
				tag := normalizeTag(p)
				if tag == "" {
					ok = false
					break
				}
				params[i] = tag
			}
			if !ok {
				skipped++
				continue
			}
			entry.Factories[m.Name] = kbMethod{
				Params:  params,
				Returns: normalizeReturn(m.Returns),
			}
		}

		for _, setter := range c.Setters {
			if skipMethod(setter.Name) {
				skipped++
				continue
			}
			tag := normalizeTag(setter.Type)
			if tag == "" {
				skipped++
				continue
			}
			entry.Setters[setter.Name] = tag
		}

		if len(entry.Factories) == 0 {
			entry.Factories = nil
		}
		if len(entry.Setters) == 0 {
			entry.Setters = nil
		}
		kb.Classes[c.Name] = entry
	}

	return kb, skipped
}

// skipMethod filters private, dunder, and unnamed methods.
func skipMethod(name string) bool {
	return name == "" || strings.HasPrefix(name, "_")
}

// normalizeTag maps a Python-side type name to a KB type tag. Empty
// means the type has no KB representation and the method is dropped.
func normalizeTag(pyType string) string {
	switch pyType {
	case "":
		return ""
	case "str", "string", "String":
		return schema.TagStr
	case "int", "Integer", "PositiveInteger":
		return schema.TagInt
	case "float", "Float", "Numerical":
		return schema.TagFloat
	case "bool", "Boolean":
		return schema.TagBool
	}
	if strings.HasSuffix(pyType, "Enum") {
		return schema.EnumTagPrefix + pyType
	}
	// Anything left must be a class reference; the integrity check
	// catches names the dump never declared.
	return pyType
}

// normalizeReturn maps a factory return type, where "no return" is a
// valid outcome rather than a dropped method.
func normalizeReturn(pyType string) string {
	switch pyType {
	case "", "None", "NoneType":
		return schema.ReturnNone
	}
	return normalizeTag(pyType)
}
