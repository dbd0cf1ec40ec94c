// Package log provides a small leveled logging interface used across
// the ingestion and retrieval pipeline.
//
// Two implementations ship with the package: DefaultLogger on top of the
// standard library, and GologLogger on top of kataras/golog for leveled,
// colored server output. A package-level default logger lets libraries
// log without threading a Logger through every constructor.
//
//	logger := log.NewDefaultLogger(log.LevelInfo)
//	logger.Info("ingested %s", filename)
//	logger.Error("document store write failed: %v", err)
//
// Components accept a Logger in their constructors; pass NoOpLogger to
// silence a component in tests.
package log
