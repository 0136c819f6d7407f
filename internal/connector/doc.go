// Package connector adapts heterogeneous upstream systems (CRM REST APIs,
// document stores, relational databases, flat files, generic REST
// endpoints) to a shared fetch contract, and normalizes their rows into
// canonical events through the mapping store and schema registry.
package connector
