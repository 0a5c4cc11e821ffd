// Package resilience provides the concurrency and throughput guards used
// around node executors.
//
//   - Bulkhead: bounds how many executors run at once. One bulkhead is
//     shared by every layer of a workflow run.
//   - RateLimiter: token bucket limiting how often a single executor is
//     invoked, for executors backed by rate-limited remote services.
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "run", MaxConcurrent: 4})
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 2, Burst: 1})
//
//	err := bh.Execute(ctx, func() error {
//	    return rl.ExecuteWait(ctx, func() error {
//	        return call(ctx)
//	    })
//	})
package resilience
