package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"mini-social/api"
	"mini-social/config"
	"mini-social/feed"
	"mini-social/graph"
	"mini-social/identity"
	"mini-social/queue"
	"mini-social/reader"
	"mini-social/service"
	"mini-social/storage"
)

func openStore(ctx context.Context, cnf config.Config) (storage.Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cnf.MongoURL))
	if err != nil {
		return nil, err
	}
	var store storage.Store = &storage.MongoStore{DB: client.Database(cnf.MongoDBName)}
	if cnf.RedisURL == "" {
		return store, nil
	}
	opt, err := redis.ParseURL(cnf.RedisURL)
	if err != nil {
		return nil, err
	}
	return &storage.CachedStore{
		Client:          redis.NewClient(opt),
		InternalStorage: store,
		Collections:     map[string]bool{storage.PostsCollection: true},
		TTL:             cnf.CacheTTL,
	}, nil
}

func main() {
	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
	cnf, err := config.Load(fs)
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cnf.SlogLevel()}))

	ctx := context.Background()
	store, err := openStore(ctx, cnf)
	if err != nil {
		logger.Error("storage unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	profiles := storage.NewProfileRepository(store)
	posts := storage.NewPostRepository(store)
	engine := feed.NewEngine(profiles, logger, cnf.FanOutConcurrency)

	var dispatcher feed.Dispatcher = &feed.InlineDispatcher{Engine: engine, Logger: logger}
	if cnf.BrokerURL != "" {
		handler := &queue.Handler{Posts: posts, Engine: engine, Logger: logger, Timeout: cnf.RequestTimeout}
		server, err := queue.NewServer(cnf.BrokerURL, handler)
		if err != nil {
			logger.Error("task queue unavailable", slog.Any("error", err))
			os.Exit(1)
		}
		if cnf.AppMode == config.ModeWorker {
			logger.Info("starting fan-out worker", slog.Int("concurrency", cnf.WorkerConcurrency))
			log.Fatal(queue.Launch(server, cnf.WorkerConcurrency))
		}
		dispatcher = &queue.Dispatcher{
			Sender:     server,
			Friends:    engine,
			Fallback:   dispatcher,
			Logger:     logger,
			RetryCount: cnf.FanOutRetries,
		}
	}

	tokens := identity.NewTokenIssuer(cnf.JWTSecret, cnf.TokenTTL)
	svc := service.New(service.Options{
		Identities: identity.NewStoreProvider(store, bcrypt.DefaultCost),
		Profiles:   profiles,
		Posts:      posts,
		FanOut:     dispatcher,
		Graph:      graph.NewMutator(profiles, logger, cnf.CompensateAccept),
		Reader:     reader.NewAggregator(profiles, posts, logger, cnf.ReadConcurrency),
		Logger:     logger,
		Timeout:    cnf.RequestTimeout,
	})

	validator, err := api.NewValidator()
	if err != nil {
		logger.Error("invalid OpenAPI document", slog.Any("error", err))
		os.Exit(1)
	}
	router := api.NewRouter(api.NewHTTPHandler(svc, tokens, logger), tokens, validator)
	srv := api.MakeServer(cnf.ServerPort, router)
	logger.Info("starting server", slog.String("addr", srv.Addr))
	log.Fatal(srv.ListenAndServe())
}
