/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

// Adapter-minted handles. The client never interprets their numeric value;
// it only echoes them back in later requests. They are distinct types so a
// scope identifier cannot be passed where a frame identifier is expected.
type (
	ScopeID           uint64
	VariableReference uint64
	StackFrameID      uint64
)

// RequestKind classifies the kind of request a debug scenario will issue
// when the session starts.
type RequestKind string

const (
	RequestKindLaunch RequestKind = "launch"
	RequestKindAttach RequestKind = "attach"
)

// Scenario is a named debug launch/attach configuration supplied by the
// caller. Config carries the adapter-specific configuration opaquely.
type Scenario struct {
	// Label is the user-visible name of the scenario.
	Label string

	// Adapter names the debug adapter the scenario runs against.
	Adapter string

	// Config is the adapter-specific scenario configuration.
	Config []byte

	// BuildTask is the name of the build task that runs before the
	// session, empty when the scenario has none.
	BuildTask string
}
