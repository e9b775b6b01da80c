package postgres

// Example usage, wiring the durable mirror into the in-memory registry:
//
//	mirror, err := postgres.New(ctx, postgres.Config{ConnectionString: dsn})
//	reg := inmemory.New(inmemory.WithMirror(mirror))
