// Package textutil cleans user-supplied names before they touch the
// filesystem.
package textutil
