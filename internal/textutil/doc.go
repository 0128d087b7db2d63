// Package textutil sanitizes user-supplied names before they become file
// names or object keys.
package textutil
