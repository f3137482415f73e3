/*
Package sandbox provides the isolation boundary a compiled preview document
runs in.

# Overview

Each Boundary owns a private DOM (parsed with golang.org/x/net/html) and a
fresh goja runtime. Nothing is shared with the host: commands go in through
Post and Dispatch, and everything the page says comes out through the Sink
as wire.Envelope values stamped with the boundary's id.

# Architecture

  - Event loop: one goroutine per boundary executes tasks (document load,
    host messages, simulated input, timers) one at a time
  - DOM bindings: element objects keep a stable identity per node;
    selectors use cascadia via goquery, input targets also accept XPath
  - Events: capture, target and bubble phases over window, document and
    the element's ancestors

# Security Model

Only script execution is permitted. Module loaders, network constructors
and storage are absent or throw SecurityError, location is read-only
about:srcdoc, and parent exposes postMessage alone.

Every task runs under Config.Timeout. A runaway task is interrupted and
reported to the host as an error message; the boundary keeps serving.

# Usage Example

	b, err := sandbox.New(sandbox.DefaultConfig(), compiler.Compile(bundle), sink)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Start(); err != nil {
		return err
	}
	_ = b.Post(ctx, wire.InspectEnable())
	_ = b.Dispatch(ctx, sandbox.Input{Kind: sandbox.InputClick, Target: "#x"})
*/
package sandbox
