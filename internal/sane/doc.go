// Package sane is a safe adapter over the SANE scanner access library.
//
// A Session owns the process-wide library state; at most one may exist at
// a time. Devices are opened through an Anchor, which serializes access to
// the session and decides how it is shared between goroutines: a *Session
// used directly, a reference-counted Shared, a mutex-guarded Locked, or
// any composition of these. Scanning goes through a ScanReader that yields
// one FrameReader per frame, and a FrameDecoder turns frames into images.
//
// Nothing in this package starts goroutines. Debug-level events are
// written to slog's default logger.
package sane
