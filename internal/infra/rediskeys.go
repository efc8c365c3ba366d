package infra

const (
	// RedisNamespace — базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "agentpay"
)

// Очереди и ключи состояния
const (
	// RedisKeySettlementQueue — durable-очередь событий расчета (RPUSH релеем, BLPOP воркером)
	RedisKeySettlementQueue = RedisNamespace + ":settlement:queue"
	// RedisKeySettlementDLQ — события, которые воркер не смог провести
	RedisKeySettlementDLQ = RedisNamespace + ":settlement:dlq"
)

// Каналы Pub/Sub (сигналы)
const (
	// RedisChanPolicyUpdate — инвалидация RAM-кэша политик на всех инстансах леджера
	RedisChanPolicyUpdate = RedisNamespace + ":policies:update"
)

// SettleDedupKey — ключ идемпотентности наблюдения события (agent, meter, nonce).
// Повторное наблюдение того же события не должно породить второй перевод.
func SettleDedupKey(idempotencyKey string) string {
	return RedisNamespace + ":settle:dedup:" + idempotencyKey
}
