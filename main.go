package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"wingsuite-api/api"
	"wingsuite-api/dispatch"
	"wingsuite-api/hierarchy"
	"wingsuite-api/storage"
	"wingsuite-api/taskflow"
)

const defaultUnitTypes = "organization,wing,group,squadron,flight"

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	unitsTableName := os.Getenv("UNITS_TABLE")
	usersTableName := os.Getenv("USERS_TABLE")
	tasksTableName := os.Getenv("TASKS_TABLE")
	notifyQueueName := os.Getenv("NOTIFY_QUEUE")
	if connStr == "" || unitsTableName == "" || usersTableName == "" || tasksTableName == "" || notifyQueueName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, unitsTableName, usersTableName, tasksTableName, notifyQueueName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	unitTypesRaw := os.Getenv("UNIT_TYPES")
	if unitTypesRaw == "" {
		unitTypesRaw = defaultUnitTypes
	}
	ordered := []string{}
	for _, t := range strings.Split(unitTypesRaw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			ordered = append(ordered, t)
		}
	}
	if len(ordered) == 0 {
		log.Fatal("invalid UNIT_TYPES")
	}
	unitTypes := hierarchy.NewUnitTypes(ordered)

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)
	ttl := 24 * time.Hour
	if v := os.Getenv("DEDUPER_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid DEDUPER_TTL: %v", err)
		}
		ttl = d
	}
	deduper := dispatch.NewRedisDeduper(rc, ttl)

	reminderInterval := time.Minute
	if v := os.Getenv("REMINDER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid REMINDER_INTERVAL: %v", err)
		}
		reminderInterval = d
	}

	testMode := os.Getenv("AUTH_TEST_MODE") == "1"
	var auth *api.Auth
	if testMode {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		domain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
	}

	logger := log.New()
	engine := hierarchy.NewEngine(store.Units, store.Users, unitTypes, logger)
	scope := hierarchy.NewScope(engine)
	workflow := taskflow.NewWorkflow(store.Tasks, logger)

	sweeper := dispatch.NewSweeper(workflow, store, deduper, store.Users, reminderInterval, logger)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, &api.Server{
		Hierarchy:      engine,
		Scope:          scope,
		Workflow:       workflow,
		Auth:           auth,
		RootPermission: os.Getenv("ROOT_PERMISSION"),
		Log:            logger,
	})

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
