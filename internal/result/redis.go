package result

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys and channels used by the publisher.
const (
	redisEquityKey    = "fx:equity:latest"
	redisExecutionKey = "fx:executions"
	redisChannel      = "fx:results"
)

// RedisPublisher mirrors the result stream into Redis: the latest
// equity snapshot under a key for cheap polling, executions on a capped
// list, and every message on a pub/sub channel for push consumers.
type RedisPublisher struct {
	client  *redis.Client
	timeout time.Duration
	maxList int64
}

// NewRedisPublisher creates a publisher over client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		timeout: 5 * time.Second,
		maxList: 10_000,
	}
}

type redisEquity struct {
	Time    time.Time         `json:"time"`
	Equity  string            `json:"equity"`
	Balance string            `json:"balance"`
	UPL     map[string]string `json:"upl"`
}

type redisExecution struct {
	Time  time.Time `json:"time"`
	Pair  string    `json:"pair"`
	Units string    `json:"units"`
	Price string    `json:"price"`
}

func (p *RedisPublisher) WriteEquity(r EquityResult) error {
	upl := make(map[string]string, len(r.UPL))
	for k, v := range r.UPL {
		upl[k] = v.String()
	}
	data, err := json.Marshal(redisEquity{
		Time:    r.Time,
		Equity:  r.Equity.String(),
		Balance: r.Balance.String(),
		UPL:     upl,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.Set(ctx, redisEquityKey, data, 0)
	pipe.Publish(ctx, redisChannel, data)
	_, err = pipe.Exec(ctx)
	return err
}

func (p *RedisPublisher) WriteExecution(r ExecutionResult) error {
	data, err := json.Marshal(redisExecution{
		Time:  r.Time,
		Pair:  string(r.Pair),
		Units: r.Units.String(),
		Price: r.Price.String(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.RPush(ctx, redisExecutionKey, data)
	pipe.LTrim(ctx, redisExecutionKey, -p.maxList, -1)
	pipe.Publish(ctx, redisChannel, data)
	_, err = pipe.Exec(ctx)
	return err
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error { return p.client.Close() }
