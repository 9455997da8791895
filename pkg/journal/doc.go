// Package journal keeps a record of every call the cloud engine makes to the
// cloud service.
//
// A Recorder implements cloud.Observer. It turns each completed call into a
// Record and writes it to a Storage backend from a background goroutine, so
// observing never blocks request processing. When the write queue is full
// the record is dropped and a warning is logged.
//
// Two backends are provided: MemoryStorage, bounded by a record cap, and
// SQLiteStorage, backed by modernc.org/sqlite. Open selects one from
// configuration.
//
// A Pruner deletes records by age and by count, and a Scheduler runs it on a
// cron schedule:
//
//	store, _ := journal.Open(cfg.Journal)
//	rec := journal.NewRecorder(store, cfg.Journal, redactor)
//	defer rec.Close()
//
//	pruner := journal.NewPruner(store, cfg.Journal.Retention)
//	sched := journal.NewScheduler(pruner, cfg.Journal.Retention.Schedule)
//	_ = sched.Start(ctx)
package journal
