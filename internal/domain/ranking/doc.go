// Package ranking holds the pure ordering algorithms: the rank allocator that
// appends a task to the end of its partition and the compactor that restores
// a contiguous 1..N sequence after a structural change.
//
// Nothing here performs I/O. Callers load a partition, run the algorithm and
// persist the returned assignments as one batch.
package ranking
