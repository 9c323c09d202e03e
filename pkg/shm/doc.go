// Package shm manages one named, page-aligned, memory-mapped POSIX shared
// memory segment used to hand payload bytes from one process to another.
//
// The segment carries no header, length field or checksum. Payloads always
// start at offset 0 and the reader must already know how many bytes to take;
// in this module that count travels out of band over a signal channel.
//
// There is no locking inside the segment either. A Segment must only be
// touched by the side that currently owns the turn of the exchange, see
// package protocol.
//
// Example usage:
//
//	seg := shm.New(shm.Options{Logger: logger})
//	if err := seg.Connect(ctx, "/sm_services"); err != nil {
//	  return err
//	}
//	defer seg.Disconnect(true)
//	err := seg.Write(ctx, []byte("payload of task-1"))
//	// ...
//
// Segments are instrumented with OpenTelemetry counters when Options.Meter
// is set.
package shm
