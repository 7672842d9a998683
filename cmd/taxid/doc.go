// Command taxid resolves NCBI TaxIDs for the species column of a taxonomy
// CSV table, writing the augmented table crash-safely and checkpointing
// progress so interrupted runs can resume without repeating remote lookups.
package main
