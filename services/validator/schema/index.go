// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import "sort"

// MethodRef identifies one declaration site of a method name.
type MethodRef struct {
	// Class is the declaring class.
	Class string

	// Kind is factory or setter.
	Kind MethodKind
}

// MethodIndex is the flat, deduplicated index methodName -> set of
// (class, kind) pairs. The suggestion engine draws its candidate
// names from here; handlers expose it for API introspection.
//
// Built once at load time; read-only afterwards.
type MethodIndex struct {
	byName map[string][]MethodRef

	// names is every distinct method name, sorted. factoryNames and
	// setterNames are the per-kind projections, also sorted, kept
	// separately so suggestion candidate sets need no filtering pass.
	names        []string
	factoryNames []string
	setterNames  []string
}

// buildMethodIndex indexes all method declarations across classes.
// Duplicate (class, kind) pairs for a name collapse to one entry.
func buildMethodIndex(classes map[string]*ClassSpec) *MethodIndex {
	byName := make(map[string][]MethodRef)
	seen := make(map[string]map[MethodRef]bool)

	add := func(method string, ref MethodRef) {
		if seen[method] == nil {
			seen[method] = make(map[MethodRef]bool)
		}
		if seen[method][ref] {
			return
		}
		seen[method][ref] = true
		byName[method] = append(byName[method], ref)
	}

	for className, spec := range classes {
		for _, fname := range spec.factoryNames {
			add(fname, MethodRef{Class: className, Kind: KindFactory})
		}
		for _, sname := range spec.setterNames {
			add(sname, MethodRef{Class: className, Kind: KindSetter})
		}
	}

	idx := &MethodIndex{byName: byName}

	factorySeen := make(map[string]bool)
	setterSeen := make(map[string]bool)
	for name, refs := range byName {
		idx.names = append(idx.names, name)
		for _, ref := range refs {
			switch ref.Kind {
			case KindFactory:
				factorySeen[name] = true
			case KindSetter:
				setterSeen[name] = true
			}
		}
		// Declaration order within a name's ref list depends on map
		// iteration; sort for determinism.
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].Class != refs[j].Class {
				return refs[i].Class < refs[j].Class
			}
			return refs[i].Kind < refs[j].Kind
		})
	}
	sort.Strings(idx.names)

	for name := range factorySeen {
		idx.factoryNames = append(idx.factoryNames, name)
	}
	sort.Strings(idx.factoryNames)
	for name := range setterSeen {
		idx.setterNames = append(idx.setterNames, name)
	}
	sort.Strings(idx.setterNames)

	return idx
}

// Lookup returns the (class, kind) pairs declaring the method name.
// The returned slice is a copy; nil means the name is undeclared.
func (idx *MethodIndex) Lookup(method string) []MethodRef {
	refs, ok := idx.byName[method]
	if !ok {
		return nil
	}
	out := make([]MethodRef, len(refs))
	copy(out, refs)
	return out
}

// Contains reports whether any class declares the method name.
func (idx *MethodIndex) Contains(method string) bool {
	_, ok := idx.byName[method]
	return ok
}

// MethodNames returns every distinct method name, sorted.
// The returned slice is a copy.
func (idx *MethodIndex) MethodNames() []string {
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out
}

// KindNames returns the distinct method names declared with the
// given kind anywhere in the KB, sorted. The returned slice is a
// copy.
func (idx *MethodIndex) KindNames(kind MethodKind) []string {
	var src []string
	switch kind {
	case KindFactory:
		src = idx.factoryNames
	case KindSetter:
		src = idx.setterNames
	default:
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Size returns the number of distinct method names indexed.
func (idx *MethodIndex) Size() int {
	return len(idx.byName)
}
