// Package routing selects a content-generation provider for each request.
//
// # Selection
//
// The Engine filters the registry down to providers that are active, whose
// circuit breaker admits traffic and whose rate window has capacity. Each
// candidate is scored on four dimensions in [0,100]:
//
//   - cost: 100 - estimatedCost/referenceMaxCost*100, floored at zero, and
//     forced to zero when Requirements.MaxCost is exceeded
//   - performance: mean of the response time score, success rate and uptime
//   - reliability: mean of the inverted error rate, uptime and a penalty of
//     10 points per consecutive failure
//   - specialization: share of the content type's specialty tags declared
//     by the provider
//
// The active Strategy weights the scores into an overall score. Candidates
// are ranked with a stable sort, so equal scores keep registry order. The
// winner's rate window is consumed and a usage event is appended to a
// bounded in-memory log.
//
// # Outcomes
//
// After the real provider call the caller reports an Outcome. It feeds the
// health monitor and the performance tracker, and is attached to the usage
// event of its request ID.
//
// # Example
//
//	engine, err := routing.Build(cfg, logger)
//	if err != nil {
//		return err
//	}
//	decision, err := engine.Select("blog_post", 1500, nil)
//	if errors.Is(err, routing.ErrNoProvidersAvailable) {
//		// back off and retry later
//	}
//	// ... call decision.SelectedProvider ...
//	engine.RecordRequestResult(routing.Outcome{
//		RequestID:    decision.RequestID,
//		ProviderID:   decision.SelectedProvider,
//		Success:      true,
//		ResponseTime: 840,
//		Cost:         0.0031,
//	})
package routing
