// Package species canonicalizes raw species name strings and applies the
// static synonym table used to improve NCBI hit rates.
package species
