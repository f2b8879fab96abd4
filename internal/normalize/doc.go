// Package normalize turns raw scraped field values into canonical forms that
// can be compared across sources. Every function is pure and idempotent, and
// none returns an error for bad input: unparseable values degrade to absent.
// The Parse* variants expose the underlying *model.ParseError for callers
// that want to log why a value was dropped.
package normalize
