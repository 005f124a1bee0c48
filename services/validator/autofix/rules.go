// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package autofix

// =============================================================================
// KNOWN RENAMES
// =============================================================================

// knownRenames maps method names generators reliably invent to the
// name the API actually declares. These are recurring inventions
// collected from generated scripts, not guesses; entries are applied
// only to calls the validator already flagged as invalid.
var knownRenames = map[string]string{
	// Behavior methods
	"new_SwcInternalBehavior": "new_InternalBehavior",
	"new_RunnableEntity":      "new_Runnable",

	// Data access (note the spelling)
	"new_DataReadAccess":  "new_DataReadAcces",
	"new_DataWriteAccess": "new_DataWriteAcces",

	// Data elements
	"new_VariableDataPrototype": "new_DataElement",
	"new_ServiceEvent":          "new_Event",

	// Components
	"new_SwComponentPrototype": "new_Component",
	"new_ComponentPrototype":   "new_Component",

	// SOME/IP (lowercase 'p')
	"new_SomeIpServiceInterfaceDeployment": "new_SomeipServiceInterfaceDeployment",
	"new_SomeIpEventDeployment":            "new_SomeipEventDeployment",
	"new_SomeIpMethodDeployment":           "new_SomeipMethodDeployment",

	// System mapping
	"new_SwcToEcuMapping":               "new_SwMapping",
	"new_SoftwareComponentToEcuMapping": "new_SwMapping",

	// Reference setters
	"set_targetDataPrototype":   "set_targetDataElement",
	"set_variableDataPrototype": "set_targetDataPrototype",
	"set_communicationCluster":  "set_commController",

	// Signal service translation
	"new_SignalServiceTranslationProps": "new_SignalServiceTranslationProp",
}

// CorrectName returns the declared replacement for a misremembered
// method name, and whether one is known.
func CorrectName(method string) (string, bool) {
	corrected, ok := knownRenames[method]
	return corrected, ok
}

// RenameCount returns the number of known rename rules.
func RenameCount() int {
	return len(knownRenames)
}

// Renames returns a copy of the rename table, keyed by the invented
// name.
func Renames() map[string]string {
	out := make(map[string]string, len(knownRenames))
	for wrong, correct := range knownRenames {
		out[wrong] = correct
	}
	return out
}
