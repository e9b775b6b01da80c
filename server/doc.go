package server

// Example wiring, typically done once at process startup:
//
//	srv := server.New(server.DefaultConfig(":8080"), server.Deps{
//	    Temporal:    temporalClient,
//	    Registry:    jobRegistry,
//	    Cache:       resultCache,
//	    Limiter:     resilience.NewLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
//	    TalkingHead: talkingHeadClient,
//	    Pipeline:    pipelineCfg,
//	}, logger)
//
//	if err := srv.Start(ctx); err != nil {
//	    logger.Error(ctx, "server failed to start", "error", err)
//	}
