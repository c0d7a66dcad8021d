// Package types defines the Store and Txn contracts, the document form and
// its canonical codec, the schema registry, the query expression language,
// and the standard errors for the lineage storage engine.
package types
