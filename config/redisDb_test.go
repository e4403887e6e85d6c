package config

import "testing"

func TestConnectRedisWithRetry_SkipsWhenUnconfigured(t *testing.T) {
	t.Setenv("REDIS_ADDRESS", "")

	rdb = nil
	locker = nil

	// Must return immediately instead of retrying a server that does not
	// exist; a Redis-less deployment still has to come up.
	ConnectRedisWithRetry()

	if GetRedisDB() != nil {
		t.Fatal("redis client must stay nil when REDIS_ADDRESS is unset")
	}
	if GetRedisLock() != nil {
		t.Fatal("lock client must stay nil when REDIS_ADDRESS is unset")
	}
}
