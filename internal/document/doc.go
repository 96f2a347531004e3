// Package document loads declarative documents and runs them.
//
// A document is a YAML file with a version, optional macros, a list of
// components with their own onMount commands, a document-level onMount and
// named event handlers:
//
//	version: "1.4"
//	macros:
//	  blink:
//	    parameters: [{name: label, default: "on"}]
//	    commands: [{type: SendEvent, arguments: ["${label}"]}]
//	components:
//	  - id: header
//	    onMount: [{type: SendEvent, arguments: [header]}]
//	onMount: [{type: SendEvent, arguments: [mounted]}]
//	handlers:
//	  press: [{type: Sequential, repeatCount: 1, commands: [...]}]
//
// Documents are validated against an embedded CUE schema before decoding
// (see Validate). A Runtime wires a loaded document to a virtual-time timer
// loop, a command registry, a sequencer and a tracer, and exposes the
// events the document emits through a FIFO queue.
package document
