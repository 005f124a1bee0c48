// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema models the autosarfactory API surface that generated
// scripts are validated against.
//
// A Schema holds class specifications (factory methods and setters),
// plus a flat method index used for near-miss suggestions. The YAML
// source format is:
//
//	version: "1.0.0"
//	classes:
//	  CanCluster:
//	    factories:
//	      new_CanClusterVariant:
//	        params: []
//	        returns: CanClusterConditional
//	    setters:
//	      set_baudrate: int
//
// Setter type tags are either a class name (reference setter) or one
// of the primitive tags int, str, float, bool, enum:<Name>.
//
// # Immutability
//
// A Schema is immutable after load. Validation passes share one
// Schema pointer without locks; accessors that expose slices return
// copies. To pick up KB changes, load a new Schema and swap the
// pointer (see Watcher).
//
// # Referential Integrity
//
// Every class name referenced by a factory return type, a parameter
// tag, or a reference-setter tag must itself be declared. Dangling
// references fail the load with a BatchError listing all of them.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Primitive type tags. Anything else (except ReturnNone and enum
// tags) is a class reference.
const (
	TagInt   = "int"
	TagStr   = "str"
	TagFloat = "float"
	TagBool  = "bool"

	// EnumTagPrefix marks enum-typed setters ("enum:ByteOrderEnum").
	// Enum members are not enumerated in the KB; the tag shape alone
	// identifies the expected constant family.
	EnumTagPrefix = "enum:"

	// ReturnNone marks factories and setters with no useful return.
	// Assignments from such calls leave the target variable unknown.
	ReturnNone = "none"
)

// IsPrimitiveTag reports whether tag is one of the scalar tags.
func IsPrimitiveTag(tag string) bool {
	switch tag {
	case TagInt, TagStr, TagFloat, TagBool:
		return true
	}
	return false
}

// IsEnumTag reports whether tag has the enum:<Name> shape.
func IsEnumTag(tag string) bool {
	return strings.HasPrefix(tag, EnumTagPrefix) && len(tag) > len(EnumTagPrefix)
}

// EnumName extracts the enum type name from an enum tag, or "" if
// the tag is not an enum tag.
func EnumName(tag string) string {
	if !IsEnumTag(tag) {
		return ""
	}
	return tag[len(EnumTagPrefix):]
}

// IsClassTag reports whether tag must resolve to a declared class.
func IsClassTag(tag string) bool {
	return tag != "" && tag != ReturnNone && !IsPrimitiveTag(tag) && !IsEnumTag(tag)
}

// MethodKind distinguishes factory methods from setters.
type MethodKind int

const (
	// KindFactory is a new_* constructor returning a child object.
	KindFactory MethodKind = iota

	// KindSetter is a set_* method assigning a value or reference.
	KindSetter
)

// String returns "factory" or "setter".
func (k MethodKind) String() string {
	switch k {
	case KindFactory:
		return "factory"
	case KindSetter:
		return "setter"
	default:
		return "unknown"
	}
}

// MethodSpec describes one factory method: its positional parameter
// type tags and the class it returns (or ReturnNone).
type MethodSpec struct {
	// Name is the method name, e.g. "new_InternalBehavior".
	Name string

	// Params holds one type tag per positional parameter.
	Params []string

	// Returns is the constructed class name, or ReturnNone.
	Returns string
}

// ReturnsClass reports whether calls to this method produce a typed
// object assignable to a variable.
func (m MethodSpec) ReturnsClass() bool {
	return m.Returns != "" && m.Returns != ReturnNone
}

// Arity returns the declared positional parameter count.
func (m MethodSpec) Arity() int {
	return len(m.Params)
}

// ClassSpec describes one API class: its factory methods and setters.
//
// Lookups are O(1) map hits; the name slices give deterministic
// iteration order (sorted ascending).
type ClassSpec struct {
	name         string
	factories    map[string]MethodSpec
	factoryNames []string
	setters      map[string]string
	setterNames  []string
}

// Name returns the class name.
func (c *ClassSpec) Name() string {
	return c.name
}

// Factory returns the spec for a factory method, if declared.
func (c *ClassSpec) Factory(method string) (MethodSpec, bool) {
	spec, ok := c.factories[method]
	return spec, ok
}

// Setter returns the type tag for a setter, if declared.
func (c *ClassSpec) Setter(method string) (string, bool) {
	tag, ok := c.setters[method]
	return tag, ok
}

// HasMethod reports whether the class declares method with the given
// kind. A factory name never matches KindSetter and vice versa.
func (c *ClassSpec) HasMethod(method string, kind MethodKind) bool {
	switch kind {
	case KindFactory:
		_, ok := c.factories[method]
		return ok
	case KindSetter:
		_, ok := c.setters[method]
		return ok
	}
	return false
}

// FactoryNames returns the declared factory names in sorted order.
// The returned slice is a copy.
func (c *ClassSpec) FactoryNames() []string {
	out := make([]string, len(c.factoryNames))
	copy(out, c.factoryNames)
	return out
}

// SetterNames returns the declared setter names in sorted order.
// The returned slice is a copy.
func (c *ClassSpec) SetterNames() []string {
	out := make([]string, len(c.setterNames))
	copy(out, c.setterNames)
	return out
}

// MethodNames returns method names of the given kind in sorted order.
func (c *ClassSpec) MethodNames(kind MethodKind) []string {
	switch kind {
	case KindFactory:
		return c.FactoryNames()
	case KindSetter:
		return c.SetterNames()
	}
	return nil
}

// MethodCount returns the total number of declared methods.
func (c *ClassSpec) MethodCount() int {
	return len(c.factories) + len(c.setters)
}

// Schema is the loaded knowledge base. Immutable after construction;
// safe for lock-free sharing across concurrent validation passes.
type Schema struct {
	version    string
	classes    map[string]*ClassSpec
	classNames []string
	index      *MethodIndex
}

// Version returns the KB version header, e.g. "1.0.0".
func (s *Schema) Version() string {
	return s.version
}

// Class returns the spec for a class, if declared.
func (s *Schema) Class(name string) (*ClassSpec, bool) {
	spec, ok := s.classes[name]
	return spec, ok
}

// HasClass reports whether the class is declared.
func (s *Schema) HasClass(name string) bool {
	_, ok := s.classes[name]
	return ok
}

// Factory resolves class.method to a factory spec.
// Fails with ErrClassNotFound or ErrMethodNotFound.
func (s *Schema) Factory(class, method string) (MethodSpec, error) {
	spec, ok := s.classes[class]
	if !ok {
		return MethodSpec{}, fmt.Errorf("%q: %w", class, ErrClassNotFound)
	}
	m, ok := spec.Factory(method)
	if !ok {
		return MethodSpec{}, fmt.Errorf("%s.%s: %w", class, method, ErrMethodNotFound)
	}
	return m, nil
}

// Setter resolves class.method to a setter type tag.
// Fails with ErrClassNotFound or ErrMethodNotFound.
func (s *Schema) Setter(class, method string) (string, error) {
	spec, ok := s.classes[class]
	if !ok {
		return "", fmt.Errorf("%q: %w", class, ErrClassNotFound)
	}
	tag, ok := spec.Setter(method)
	if !ok {
		return "", fmt.Errorf("%s.%s: %w", class, method, ErrMethodNotFound)
	}
	return tag, nil
}

// ClassNames returns all declared class names in sorted order.
// The returned slice is a copy.
func (s *Schema) ClassNames() []string {
	out := make([]string, len(s.classNames))
	copy(out, s.classNames)
	return out
}

// ClassCount returns the number of declared classes.
func (s *Schema) ClassCount() int {
	return len(s.classes)
}

// Index returns the flat method index for suggestion candidates.
func (s *Schema) Index() *MethodIndex {
	return s.index
}

// newSchema assembles and validates a Schema from parsed classes.
//
// Integrity violations are collected into a BatchError so one load
// reports every dangling reference.
func newSchema(version string, classes map[string]*ClassSpec) (*Schema, error) {
	if len(classes) == 0 {
		return nil, ErrSchemaEmpty
	}

	var violations []error

	record := func(kind, class, method, tag, role string) {
		violations = append(violations,
			fmt.Errorf("class %s: %s %s references %q as %s: %w",
				class, kind, method, tag, role, ErrDanglingClassRef))
	}

	for name, spec := range classes {
		for _, fname := range spec.factoryNames {
			m := spec.factories[fname]
			if IsClassTag(m.Returns) {
				if _, ok := classes[m.Returns]; !ok {
					record("factory", name, fname, m.Returns, "return type")
				}
			}
			for _, p := range m.Params {
				if p == "" {
					violations = append(violations,
						fmt.Errorf("class %s: factory %s has empty parameter tag: %w",
							name, fname, ErrInvalidTypeTag))
					continue
				}
				if IsClassTag(p) {
					if _, ok := classes[p]; !ok {
						record("factory", name, fname, p, "parameter type")
					}
				}
			}
		}
		for _, sname := range spec.setterNames {
			tag := spec.setters[sname]
			if tag == "" || tag == EnumTagPrefix {
				violations = append(violations,
					fmt.Errorf("class %s: setter %s has invalid tag %q: %w",
						name, sname, tag, ErrInvalidTypeTag))
				continue
			}
			if IsClassTag(tag) {
				if _, ok := classes[tag]; !ok {
					record("setter", name, sname, tag, "reference target")
				}
			}
		}
	}

	if len(violations) > 0 {
		return nil, &BatchError{Errors: violations}
	}

	classNames := make([]string, 0, len(classes))
	for name := range classes {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)

	return &Schema{
		version:    version,
		classes:    classes,
		classNames: classNames,
		index:      buildMethodIndex(classes),
	}, nil
}

// newClassSpec builds a ClassSpec with sorted name slices.
func newClassSpec(name string, factories map[string]MethodSpec, setters map[string]string) *ClassSpec {
	factoryNames := make([]string, 0, len(factories))
	for fname := range factories {
		factoryNames = append(factoryNames, fname)
	}
	sort.Strings(factoryNames)

	setterNames := make([]string, 0, len(setters))
	for sname := range setters {
		setterNames = append(setterNames, sname)
	}
	sort.Strings(setterNames)

	return &ClassSpec{
		name:         name,
		factories:    factories,
		factoryNames: factoryNames,
		setters:      setters,
		setterNames:  setterNames,
	}
}
