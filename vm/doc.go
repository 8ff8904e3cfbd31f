// Package vm implements the execution core of the XVM: a register-based
// bytecode engine.
//
// This package contains:
//   - Frames with registers, scopes, guards and an expression stack
//   - Continuation steps that resume work after a child frame returns
//   - Virtual and super dispatch over call chains, with inline caches
//   - Construction with validation, publication and finalizers
//   - The CallStack driver, its status machine and engine faults
//
// The object model is not part of the engine. Values, compositions and
// primitive operations are supplied through the Runtime interface; see
// package vm/object for the reference implementation.
package vm
