// Package vm interprets tinyc bytecode.
//
// A VM owns one stack of tagged Values. Each run resolves labels in a
// pre-pass, then dispatches instructions until the instruction pointer
// runs past the end of the code. The value left on top of the stack,
// truncated to an Integer, is the program result.
//
// Calls use a frame pointer: CALL saves the caller's frame pointer and the
// return index below the new frame, then re-pushes the arguments so that
// the first parameter lives at offset 0. ENTER allocates the remaining
// locals and LEAVE tears the frame down, leaving one return value.
//
// All runtime failures are fatal and reported as *RuntimeError, wrapping
// one of the Err* kinds so callers can test them with errors.Is.
package vm
