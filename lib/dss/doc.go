// Package dss provides NamespacedStore, the namespacing layer of the dynamic
// status store. Many independent consumers share one physical store.IStore;
// each of them works through its own NamespacedStore and only ever sees its
// own keys.
//
// Key Layout:
//
//	physical key = "dss." + namespace + "." + logical key
//
//	Writes prefix every key, range reads strip the prefix again. A key returned
//	by the wrapped store that does not carry the prefix is reported as
//	store.RetCIntegrityViolation instead of being dropped or passed on.
//
// Atomicity:
//
//	Batch puts, batch deletes and swaps with side writes are rewritten into a
//	new container and delegated as one call, so they keep the atomicity of the
//	wrapped store. Every store in this module applies them as one transaction.
//
// Arguments:
//
//	Empty keys, nil maps and nil slices fail with store.RetCInvalidArgument
//	before the wrapped store is called. Range operations accept the empty
//	prefix, which addresses the whole namespace. Caller supplied maps and
//	slices are never modified.
//
// Usage Example:
//
//	s := lstore.NewLocalStore(func() db.KVDB { return memory.NewMemoryDB(nil) })
//	runs, err := dss.New(s, "runs")
//	if err != nil {
//		return err
//	}
//
//	ok, err := runs.PutSwapWithOthers("U123.status", nil, "allocated",
//		map[string]string{"U123.host": "node-7"})
package dss
