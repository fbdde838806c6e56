/*
Package types defines the data exchanged between the isvactl packages.

A Record is the canonical, stable representation of a subsystem's
configuration; a WireRecord is whatever JSON shape the appliance speaks.
Only the mapper package converts between the two.

An Invocation carries one operation (gathered, replaced or deleted), the
desired record and the dry-run flag. A Result reports whether anything
changed, the before/after values of the keys that differ and the warnings
the appliance returned:

	{
	  "changed": true,
	  "diff": {"before": {"worker_threads": 64}, "after": {"worker_threads": 32}},
	  "warnings": []
	}

Nested groups are addressed with dotted paths:

	rec := types.Record{}
	rec.Set("heap_size.min", 512)
	v, ok := rec.Get("heap_size.min") // 512, true
*/
package types
