package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/profiler"
	"github.com/freelanceflow/freelanceflow-backend/pkg/auth"
	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/freelanceflow/freelanceflow-backend/pkg/email"
	"github.com/freelanceflow/freelanceflow-backend/pkg/environment"
	"github.com/freelanceflow/freelanceflow-backend/pkg/locking"
	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/notifications"
	"github.com/freelanceflow/freelanceflow-backend/pkg/scheduler"
	"github.com/freelanceflow/freelanceflow-backend/pkg/tasks"
	"github.com/freelanceflow/freelanceflow-backend/pkg/users"
	"github.com/freelanceflow/freelanceflow-backend/pkg/windows"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const serviceName = "freelanceflow-backend"

func main() {
	err := environment.Initialize()
	if err != nil {
		log.Fatal(err)
	}
	env := environment.Global

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logging logger.Interface = logger.Logger{Service: serviceName}
	if env.IsProduction() && env.GCPProjectID != "" {
		cloudLogger, err := logger.NewCloudLogger(ctx, env.GCPProjectID, serviceName)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			_ = cloudLogger.Close()
		}()
		logging = cloudLogger

		err = profiler.Start(profiler.Config{Service: serviceName, ProjectID: env.GCPProjectID})
		if err != nil {
			logging.Error("Could not start profiler", err)
		}
	}

	fmt.Println("Server is starting up...")

	client, err := mongo.NewClient(options.Client().ApplyURI(env.DatabaseURL))
	if err != nil {
		logging.Fatal(err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = client.Connect(connectCtx)
	if err != nil {
		logging.Fatal(err)
	}

	err = client.Ping(connectCtx, nil)
	if err != nil {
		logging.Fatal(err)
	}

	defer func() {
		err := client.Disconnect(context.Background())
		if err != nil {
			logging.Error("Could not disconnect from database", err)
		}
	}()

	fmt.Println("Database connected")

	db := client.Database(env.Database)

	var locker locking.LockerInterface = locking.NewLockerMemory()
	var windowCache windows.WindowCacheInterface
	if env.Redis != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     env.Redis,
			Password: env.RedisPassword,
		})

		err = redisClient.Ping(connectCtx).Err()
		if err != nil {
			logging.Fatal(err)
		}

		locker = locking.NewLockerRedis(redisClient)
		windowCache = windows.NewWindowCacheRedis(redisClient, env.StatusCacheTTL)
		fmt.Println("Redis connected")
	} else {
		memoryCache, err := windows.NewWindowCacheMemory(1000, env.StatusCacheTTL)
		if err != nil {
			logging.Fatal(err)
		}
		windowCache = memoryCache
	}

	userRepository := users.UserRepository{DB: db.Collection("Users"), Logger: logging}
	taskRepository := &tasks.MongoDBTaskRepository{DB: db.Collection("Tasks"), Logger: logging}
	windowRepository := &windows.MongoDBWindowRepository{DB: db.Collection("ApplicationWindows"), Logger: logging}
	applicationRepository := &windows.MongoDBApplicationRepository{DB: db.Collection("Applications"), Logger: logging}
	notificationRepository := &notifications.MongoDBNotificationRepository{DB: db.Collection("Notifications")}

	for _, indexed := range []interface {
		EnsureIndexes(ctx context.Context) error
	}{taskRepository, windowRepository, applicationRepository, notificationRepository} {
		err = indexed.EnsureIndexes(connectCtx)
		if err != nil {
			logging.Fatal(err)
		}
	}

	notificationController := &notifications.NotificationController{
		Repository:      notificationRepository,
		UserRepository:  userRepository,
		Logger:          logging,
		EmailTemplate:   env.AssignedEmailTemplate,
		EmailSeverities: map[string]bool{notifications.SeveritySuccess: true},
	}

	if env.FirebaseCredentials != "" {
		pusher, err := notifications.NewFirebasePusher(ctx, env.GCPProjectID, env.FirebaseCredentials)
		if err != nil {
			logging.Fatal(err)
		}
		notificationController.Pusher = pusher
	}

	if env.Sendinblue != "" && env.AssignedEmailTemplate != "" {
		notificationController.Mailer = email.NewSendInBlueService(env.Sendinblue)
	}

	notifier := &windows.AsyncNotifier{Dispatcher: notificationController, Logger: logging}

	engine := windows.NewEngine(windowRepository, applicationRepository, taskRepository,
		windows.PolicyByName(env.SelectionPolicy, userRepository), notifier, logging)
	engine.Cache = windowCache
	engine.DefaultMaxExtensions = env.DefaultMaxExtensions
	engine.BatchSize = env.SweepBatchSize

	registry := &windows.Registry{
		Windows:      windowRepository,
		Applications: applicationRepository,
		Tasks:        taskRepository,
		Notifier:     notifier,
		Cache:        windowCache,
		Logger:       logging,
	}

	sweepScheduler := scheduler.NewCronScheduler(engine, locker, logging, env.SweepInterval, env.SweepMinGap)

	responseManager := &communication.ResponseManager{Logger: logging}

	windowHandler := windows.Handler{
		Engine:          engine,
		Registry:        registry,
		StatusReader:    &windows.StatusReader{Windows: windowRepository, Cache: windowCache, Logger: logging},
		TaskRepository:  taskRepository,
		Logger:          logging,
		ResponseManager: responseManager,
	}

	taskHandler := tasks.Handler{
		TaskRepository:  taskRepository,
		WindowOpener:    engine,
		WindowErrors:    &windowHandler,
		Logger:          logging,
		ResponseManager: responseManager,
	}

	notificationHandler := notifications.Handler{
		Repository:      notificationRepository,
		Logger:          logging,
		ResponseManager: responseManager,
	}

	schedulerHandler := scheduler.Handler{
		Scheduler:       sweepScheduler,
		ResponseManager: responseManager,
	}

	authMiddleware := auth.AuthenticationMiddleware{ResponseManager: responseManager, Secret: env.Secret}
	schedulerMiddleware := auth.SchedulerMiddleware{ResponseManager: responseManager, Secret: env.SchedulerSecret}

	r := mux.NewRouter()
	r.HandleFunc("/", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)

		_, err := fmt.Fprint(writer, "Welcome to the FreelanceFlow API!")
		if err != nil {
			logging.Error("Could not write welcome message", err)
		}
	})

	api := r.NewRoute().Subrouter()
	api.Use(authMiddleware.Middleware)
	api.HandleFunc("/tasks", taskHandler.TaskAdd).Methods(http.MethodPost)
	api.HandleFunc("/tasks", taskHandler.GetAllTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/my-tasks", taskHandler.GetMyTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}", taskHandler.TaskGet).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}", taskHandler.TaskUpdate).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{taskID}/claim", taskHandler.ClaimTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/window", windowHandler.OpenWindow).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/window", windowHandler.GetWindow).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}/window/extend", windowHandler.ExtendWindow).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/applications", windowHandler.SubmitApplication).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/applications", windowHandler.ListApplications).Methods(http.MethodGet)
	api.HandleFunc("/notifications", notificationHandler.GetAllNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/mark-all-read", notificationHandler.MarkAllRead).Methods(http.MethodPut)
	api.HandleFunc("/notifications/{notificationID}/read", notificationHandler.MarkRead).Methods(http.MethodPatch)
	api.HandleFunc("/notifications/{notificationID}", notificationHandler.DeleteNotification).Methods(http.MethodDelete)

	operator := r.PathPrefix("/scheduler").Subrouter()
	operator.Use(schedulerMiddleware.Middleware)
	operator.HandleFunc("/trigger", schedulerHandler.Trigger).Methods(http.MethodPost)
	operator.HandleFunc("/status", schedulerHandler.GetStatus).Methods(http.MethodGet)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Content-Type", "application/json")
			if env.Cors != "" {
				w.Header().Add("Access-Control-Allow-Origin", env.Cors)
			}
			next.ServeHTTP(w, r)
		})
	})

	server := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := server.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	group.Go(func() error {
		return sweepScheduler.Start(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logging.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := sweepScheduler.Stop(shutdownCtx)
		if err != nil {
			logging.Error("Could not stop scheduler", err)
		}

		return server.Shutdown(shutdownCtx)
	})

	fmt.Printf("Listening on port %s\n", env.Port)

	err = group.Wait()
	notifier.Wait()
	if err != nil {
		logging.Error("Server stopped with error", err)
	}
}
