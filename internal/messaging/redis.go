package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"

	"github.com/redis/go-redis/v9"
)

type Callbacks struct {
	BatteryCallback func() error       // battery service published a new charge
	ControlCallback func(string) error // "next", "prev", "run", "stop"
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Infof("Redis connection failed: %v", err)
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the battery subscription and the remote control list.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	pubsub := r.client.Subscribe(r.ctx, batteryHash)
	r.wg.Add(2)
	go r.redisListener(pubsub)
	go r.listCommandListener("robot:control", r.handleControlCommand)
	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Short timeout so cancellation is noticed
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if err == context.Canceled {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				continue
			}
			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleControlCommand(value string) error {
	if r.callbacks.ControlCallback == nil {
		return nil
	}
	switch value {
	case "next", "prev", "run", "stop":
		return r.callbacks.ControlCallback(value)
	default:
		return fmt.Errorf("invalid control command: %s", value)
	}
}

func (r *RedisClient) redisListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	channel := pubsub.Channel()
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-channel:
			if !ok || msg == nil {
				r.logger.Errorf("Redis subscription closed")
				return
			}
			r.logger.Debugf("Received Redis message: channel=%s payload=%s", msg.Channel, msg.Payload)
			if msg.Channel == batteryHash && msg.Payload == "charge" && r.callbacks.BatteryCallback != nil {
				if err := r.callbacks.BatteryCallback(); err != nil {
					r.logger.Warnf("Failed to handle battery update: %v", err)
				}
			}
		}
	}
}

// PublishRobotState stores the lifecycle state with its timestamp and
// notifies subscribers.
func (r *RedisClient) PublishRobotState(state types.SystemState) error {
	r.logger.Infof("Publishing robot state: %s", state)
	timestamp := time.Now().Format(time.RFC3339)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, robotHash, "state", string(state))
	pipe.HSet(r.ctx, robotHash, "state:timestamp", timestamp)
	pipe.Publish(r.ctx, robotHash, "state")
	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Warnf("Failed to publish robot state: %v", err)
		return err
	}
	return nil
}

// PublishMode mirrors the selected mode for dashboards.
func (r *RedisClient) PublishMode(mode types.Mode) error {
	return r.publishHashSet(robotHash, "mode", mode.String(), robotHash, "mode")
}

func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// SendCommand pushes a command onto a service list.
func (r *RedisClient) SendCommand(ctx context.Context, list, command string) error {
	if err := r.client.LPush(ctx, list, command).Err(); err != nil {
		return fmt.Errorf("failed to send '%s' to %s: %w", command, list, err)
	}
	r.logger.Debugf("Sent command '%s' to %s", command, list)
	return nil
}

// GetHashField reads a hash field; a missing field reads as "".
func (r *RedisClient) GetHashField(ctx context.Context, hash, field string) (string, error) {
	value, err := r.client.HGet(ctx, hash, field).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get hash field %s from %s: %w", field, hash, err)
	}
	return value, nil
}

func (r *RedisClient) SetHashField(ctx context.Context, hash, field string, value interface{}) error {
	if err := r.client.HSet(ctx, hash, field, value).Err(); err != nil {
		return fmt.Errorf("failed to set hash field %s on %s: %w", field, hash, err)
	}
	return nil
}

// AwaitReply blocks until the controller answers request id or wait elapses.
// A missing reply reads as "".
func (r *RedisClient) AwaitReply(ctx context.Context, id string, wait time.Duration) (string, error) {
	result, err := r.client.BRPop(ctx, wait, replyList(id)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(result) < 2 {
		return "", fmt.Errorf("short BRPOP reply for %s", id)
	}
	return result[1], nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Infof("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
