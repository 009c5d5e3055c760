// Package health reports whether the offline layer can serve.
//
// Checkers cover the pieces the proxy depends on: the cache store, the
// offline queue and its database, and the worker lifecycle. An Aggregator
// runs them together and the HTTP handlers expose the result:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewStoreChecker(store))
//	agg.Register(health.NewQueueChecker(q, 100))
//	agg.Register(health.NewLifecycleChecker(state))
//	health.RegisterHandlers(mux, agg)
//
// Degraded counts as ready; only Unhealthy fails readiness.
package health
