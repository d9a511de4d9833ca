// Package array implements the Array runtime (spec.md S:3, S:4.6): the
// handle bound to a checked ArraySchema and an I/O mode, through which
// callers write new fragments and read subarrays back out via VFS.
package array

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/status"
	"github.com/hupe1980/tilestore/tilecoords"
	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
)

// Mode is an Array's I/O mode.
type Mode uint8

const (
	ModeRead Mode = iota
	ModeWrite
	ModeAppend
)

// String returns the mode's canonical name.
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "READ"
	case ModeWrite:
		return "WRITE"
	case ModeAppend:
		return "APPEND"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Array is a handle bound to a schema and an I/O mode: created by Open,
// mutated by Read/Write/ResetSubarray/ResetAttributes, destroyed by
// Close, which flushes any pending write (spec.md S:3). Array holds a
// shared, read-only reference to its schema; it does not own it.
type Array struct {
	schema *schema.ArraySchema
	vfs    *vfs.VFS
	mode   Mode
	tr     *tilecoords.Translator

	arrayURI    uri.URI
	fragmentID  string
	fragmentDir uri.URI
	wstate      *writeState
	unlock      func() error

	// subarray/attributes are what ResetSubarray/ResetAttributes install
	// (spec.md S:3's reset_subarray/reset_attributes operations). A nil
	// subarray argument to Read falls back to subarray; Read does not
	// consult attributes.
	subarray   []tilecoords.Range
	attributes []string
}

// ResetSubarray sets the subarray a subsequent Read with a nil subarray
// argument targets.
func (a *Array) ResetSubarray(subarray []tilecoords.Range) {
	a.subarray = subarray
}

// ResetAttributes records attrs on the Array. Read does not consult this
// list: it fills exactly the buffers passed to it.
func (a *Array) ResetAttributes(attrs []string) {
	a.attributes = attrs
}

// Open loads arrayURI's schema and returns an Array bound to it in mode.
// ModeWrite and ModeAppend both immediately mint a new fragment
// directory: spec.md S:4.6 draws no write/append distinction at the
// fragment level, since a fragment is always a self-contained,
// append-only unit regardless of which mode produced it.
func Open(ctx context.Context, v *vfs.VFS, arrayURI uri.URI, mode Mode) (*Array, error) {
	s, err := schema.Load(ctx, v, arrayURI)
	if err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}

	exclusive := mode == ModeWrite || mode == ModeAppend
	unlock, err := v.Lock(ctx, arrayURI.Join(lockFileName), exclusive)
	if err != nil {
		return nil, err
	}

	a := &Array{
		schema:   s,
		vfs:      v,
		mode:     mode,
		tr:       tilecoords.New(s),
		arrayURI: arrayURI,
		unlock:   unlock,
	}

	if exclusive {
		a.fragmentID = NewFragmentID(time.Now())
		a.fragmentDir = fragmentDir(arrayURI, a.fragmentID)
		if err := v.CreateDir(ctx, a.fragmentDir); err != nil {
			unlock()
			return nil, err
		}
		a.wstate = newWriteState(s)
	}

	return a, nil
}

// Schema returns the array's schema.
func (a *Array) Schema() *schema.ArraySchema { return a.schema }

// Mode returns the array's I/O mode.
func (a *Array) Mode() Mode { return a.mode }

// FragmentID returns the id of the fragment a write-mode Array is
// producing. It is the empty string for a read-mode Array.
func (a *Array) FragmentID() string { return a.fragmentID }

// Close flushes any pending write, producing the fragment's tile and
// offsets files, and releases the array's filelock.
func (a *Array) Close(ctx context.Context) error {
	var err error
	if a.wstate != nil {
		err = a.finalize(ctx)
		a.wstate = nil
	}
	if a.unlock != nil {
		if uerr := a.unlock(); err == nil {
			err = uerr
		}
		a.unlock = nil
	}
	return err
}

func (a *Array) requireWriteMode() error {
	if a.wstate == nil {
		return status.New(status.CategoryQueryError, "array: operation requires a WRITE or APPEND array")
	}
	return nil
}

func (a *Array) requireReadMode() error {
	if a.mode != ModeRead {
		return status.New(status.CategoryQueryError, "array: operation requires a READ array")
	}
	return nil
}
