package utils

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"

	"bitbucket.org/gananathtech/inventory_backend/config"
)

// AcquireFinalizeLock serializes invoice finalization across processes.
// Returns the obtained lock; the caller releases it after commit/rollback.
// Row locks inside the transaction remain the correctness guarantee; this
// lock only keeps concurrent finalizes from piling up on those row locks.
func AcquireFinalizeLock(ctx context.Context, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Redis not configured (tests, single-process deployments).
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, "finalizeLock", 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain finalize lock", nil, err)
		return nil, errors.New("could not obtain finalize lock")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining finalize lock", nil, err)
		return nil, err
	}
	return lock, nil
}

func ReleaseFinalizeLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	_ = lock.Release(ctx)
}
