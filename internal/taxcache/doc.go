// Package taxcache persists the species name to TaxID checkpoint cache.
//
// The snapshot is a human-inspectable JSON object on disk; deleting it forces
// full re-resolution. Writes go through a temp-file-then-rename discipline so
// an interrupted flush can never corrupt the previous snapshot.
package taxcache
