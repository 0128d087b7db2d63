// Package separator splits a recording into instrument stems by running the
// configured separation tool.
//
// The tool writes one audio file per stem into an output directory; the
// client reports them keyed by lower-case stem name (for example "vocals" or
// "other"). Mapping names onto asset kinds is left to the caller.
package separator
