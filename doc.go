// Package animcore turns a time-ordered sequence of RGBA frames into a
// looping GIF89a or animated WebP file.
//
// The pipeline resamples each frame to the requested output size, builds a
// color palette and quantizes frames against it, plans per-frame disposal
// and delay, and serializes the result with the GIF or WebP writer. Encode
// is the single entry point; a Job scopes one call's request id, progress
// reporting, and cancellation.
package animcore
