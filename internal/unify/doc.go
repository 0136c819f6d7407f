// Package unify merges contact records from different source systems into
// one unified identity per (tenant, normalized email), with a link row per
// contributing source record.
package unify
