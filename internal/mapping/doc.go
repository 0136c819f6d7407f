// Package mapping owns the tenant+connector scoped field mapping registry:
// the FieldMapping rows, the read-through TTL cache with synchronous
// invalidation, the ordered fallback resolver, and the Apply path that turns
// a raw source row into canonical fields plus an unknown-field bucket.
//
// All mapping mutation goes through Store.Write so cache invalidation is
// never skipped.
package mapping
