// Package queue runs the feed fan-out as a machinery task, so a post is
// delivered to feeds even when the first attempt fails.
package queue

import (
	"github.com/RichardKnop/machinery/v1"
	"github.com/RichardKnop/machinery/v1/config"
)

const (
	DefaultQueue = "machinery_tasks"
	ConsumerTag  = "fanout_worker"
)

// NewServer connects machinery to a redis broker, which also stores task
// results.
func NewServer(brokerURL string, handler *Handler) (*machinery.Server, error) {
	cnf := &config.Config{
		Broker:          brokerURL,
		DefaultQueue:    DefaultQueue,
		ResultBackend:   brokerURL,
		ResultsExpireIn: 3600,
		Redis: &config.RedisConfig{
			MaxIdle:                3,
			IdleTimeout:            240,
			ReadTimeout:            15,
			WriteTimeout:           15,
			ConnectTimeout:         15,
			NormalTasksPollPeriod:  1000,
			DelayedTasksPollPeriod: 500,
		},
	}

	server, err := machinery.NewServer(cnf)
	if err != nil {
		return nil, err
	}
	if err := server.RegisterTasks(map[string]interface{}{
		FanOutTask: handler.FanOut,
	}); err != nil {
		return nil, err
	}
	return server, nil
}

// Launch blocks consuming fan-out tasks until the worker is stopped.
func Launch(server *machinery.Server, concurrency int) error {
	worker := server.NewWorker(ConsumerTag, concurrency)
	return worker.Launch()
}
