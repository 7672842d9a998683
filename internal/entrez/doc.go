// Package entrez provides the minimal NCBI E-utilities client used during
// TaxID resolution.
//
// It exposes the two operations the resolver needs: a taxonomy esearch that
// returns candidate TaxIDs for a query term (JSON, capped result count) and an
// efetch that retrieves a record's taxonomic rank (XML). Every request carries
// the contact email and tool identifier NCBI asks for, plus the optional API
// key that raises the permitted request rate. The Searcher interface lets
// tests substitute stub implementations without touching production code.
package entrez
