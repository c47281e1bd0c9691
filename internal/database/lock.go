package database

import "hash/fnv"

// TryAdvisoryXactLockSQL acquires a transaction-scoped advisory lock without
// blocking. The lock is released automatically on commit or rollback, so a
// failed run can never leave it held.
const TryAdvisoryXactLockSQL = "SELECT pg_try_advisory_xact_lock($1)"

// AdvisoryLockKey maps a lock name to the 64-bit key space Postgres advisory
// locks use. FNV-1a keeps the mapping stable across processes and deploys.
func AdvisoryLockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}
