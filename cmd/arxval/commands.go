// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/veloxar/arxval/cmd/arxval/config"
	"github.com/veloxar/arxval/pkg/ux"
)

// --- Global Command Variables ---
var (
	kbPath           string // CLI override for kb.path
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	validateJSON   bool
	validateQuiet  bool
	validateBrowse bool
	validateName   string

	fixWrite bool
	fixJSON  bool
	fixYes   bool
	fixName  string

	feedbackJSON   bool
	feedbackPrompt bool

	kbClassesKind string
	kbJSON        bool

	serveAddr string

	rootCmd = &cobra.Command{
		Use:   "arxval",
		Short: "Static validation for generated autosarfactory scripts",
		Long: `arxval checks Python scripts that drive the autosarfactory API
against a knowledge base of declared factories and setters, before
any of them runs. It finds hallucinated methods, repairs the ones it
can, and composes feedback an LLM can act on.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
			if err := config.Load(); err != nil {
				log.Fatalf("Error loading config: %v", err)
			}
		},
	}

	validateCmd = &cobra.Command{
		Use:   "validate [script.py]",
		Short: "Validate a generated script against the knowledge base",
		Long: `Runs one validation pass and prints the findings. Reads the script
from the named file, or from stdin when the argument is missing or "-".

Exit Codes:
  0 = Script is valid
  1 = Script has Error findings
  2 = Error (bad path, bad knowledge base, parse failure)`,
		Args: cobra.MaximumNArgs(1),
		Run:  runValidate, // Defined in cmd_validate.go
	}

	fixCmd = &cobra.Command{
		Use:   "fix [script.py]",
		Short: "Apply deterministic fixes to a generated script",
		Long: `Runs a validation pass with known-alias rewrites enabled, prints
the diff, and optionally writes the fixed script back in place.

Exit Codes:
  0 = Script is valid (originally or after fixes)
  1 = Errors remain after fixing
  2 = Error (bad path, bad knowledge base, parse failure)`,
		Args: cobra.MaximumNArgs(1),
		Run:  runFix, // Defined in cmd_fix.go
	}

	feedbackCmd = &cobra.Command{
		Use:   "feedback [script.py]",
		Short: "Compose rejection feedback for a generated script",
		Args:  cobra.MaximumNArgs(1),
		Run:   runFeedback, // Defined in cmd_feedback.go
	}

	// --- Knowledge Base ---
	kbCmd = &cobra.Command{
		Use:   "kb",
		Short: "Inspect and verify the knowledge base",
	}
	kbInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show knowledge base version and size",
		Run:   runKBInfo, // Defined in cmd_kb.go
	}
	kbClassesCmd = &cobra.Command{
		Use:   "classes",
		Short: "List the classes in the knowledge base",
		Run:   runKBClasses, // Defined in cmd_kb.go
	}
	kbClassCmd = &cobra.Command{
		Use:   "class [name]",
		Short: "Show one class's factories and setters",
		Args:  cobra.ExactArgs(1),
		Run:   runKBClass, // Defined in cmd_kb.go
	}
	kbCheckCmd = &cobra.Command{
		Use:   "check [kb.yaml]",
		Short: "Verify a knowledge base file loads clean",
		Long: `Loads the named knowledge base file (or the configured one) and
reports version and integrity problems without starting anything.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runKBCheck, // Defined in cmd_kb.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the validation HTTP service",
		Run:   runServe, // Defined in cmd_serve.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default), standard, minimal, or machine (scripting)")
	rootCmd.PersistentFlags().StringVar(&kbPath, "kb", "",
		"Knowledge base path or gs:// URI (overrides the config file)")

	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output as JSON")
	validateCmd.Flags().BoolVar(&validateQuiet, "quiet", false, "Only exit code, no output")
	validateCmd.Flags().BoolVar(&validateBrowse, "browse", false, "Browse findings interactively")
	validateCmd.Flags().StringVar(&validateName, "name", "", "Script name for diagnostics (default: file name)")

	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().BoolVar(&fixWrite, "write", false, "Write the fixed script back to the file")
	fixCmd.Flags().BoolVar(&fixJSON, "json", false, "Output as JSON")
	fixCmd.Flags().BoolVar(&fixYes, "yes", false, "Skip the confirmation prompt before writing")
	fixCmd.Flags().StringVar(&fixName, "name", "", "Script name for diagnostics (default: file name)")

	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.Flags().BoolVar(&feedbackJSON, "json", false, "Output as JSON")
	feedbackCmd.Flags().BoolVar(&feedbackPrompt, "prompt", false, "Print the raw LLM prompt text instead of the report")

	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbInfoCmd)
	kbCmd.AddCommand(kbClassesCmd)
	kbClassesCmd.Flags().StringVar(&kbClassesKind, "kind", "", "Only list classes declaring this method kind: factory or setter")
	kbCmd.AddCommand(kbClassCmd)
	kbCmd.AddCommand(kbCheckCmd)
	kbInfoCmd.Flags().BoolVar(&kbJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides the config file)")
}
