//go:build integration_test || all_tests

package test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/suite"

	"github.com/tadeportfolio/portfolio/internal"
	"github.com/tadeportfolio/portfolio/internal/config"
	"github.com/tadeportfolio/portfolio/internal/db"
	"github.com/tadeportfolio/portfolio/pkg"
)

const (
	serverPort = 9000
	serverHost = "127.0.0.1"

	testDBName = "portfolio_test"
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

var (
	testUsername = "testuser"
	testPassword = "testpass"
)

// Define the suite, and absorb the built-in basic suite
// functionality from testify - including a T() method which
// returns the current testing context
type IntegrationTestSuite struct {
	suite.Suite

	DB         *sql.DB
	Redis      *redis.Client
	dockerPool *dockertest.Pool
	server     *internal.Server
	teardown   []func()
}

// In order for 'go test' to run this suite, we need to create
// a normal test function and pass our suite to suite.Run
func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

// runs before all tests are executed
func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()
	fmt.Println("setting up test suite...")

	s.teardown = make([]func(), 0)

	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	var err error
	s.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}

	// uses pool to try to connect to Docker
	if err = s.dockerPool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}
	fmt.Println("dockertest pool ping successful")

	redisPort, err := s.redisSetup()
	if err != nil {
		s.cleanup()
		log.Fatalf("failed to setup redis: %s", err.Error())
	}
	fmt.Println("redis setup successful")

	pgPort, err := s.postgresSetup()
	if err != nil {
		s.cleanup()
		log.Fatalf("failed to setup postgres: %s", err)
	}
	fmt.Println("postgres setup successful")

	cfg := getTestConfig(redisPort, pgPort)
	s.server, err = internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config: cfg,
			Secrets: &config.Secrets{
				SessionSecret: "test-session-secret",
				TokenSecret:   "test-token-secret",
			},
			VersionInfo: "test-version-info",
		},
	)
	if err != nil {
		s.cleanup()
		log.Fatalf("new server: %s", err)
	}
	fmt.Println("server created")

	// the server creates the schema, the user is added right after
	if err := s.addTestUser(); err != nil {
		s.cleanup()
		log.Fatalf("add test user: %s", err)
	}

	if err := s.server.Serve(cfg.Host, cfg.Port); err != nil {
		s.cleanup()
		log.Fatalf("serve: %s", err)
	}
	if err := s.waitForServer(); err != nil {
		s.cleanup()
		log.Fatalf("wait for server: %s", err)
	}
	fmt.Println("server started")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.cleanup()
}

func (s *IntegrationTestSuite) cleanup() {
	fmt.Println(" --> cleaning up test suite...")
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			fmt.Printf(" --> test suite db close error: %s\n", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			fmt.Printf(" --> test suite redis close error: %s\n", err)
		}
	}
	if s.server != nil {
		s.server.GracefulShutdown()
	}
	fmt.Println(" --> test suite server shut down")
	for _, teardown := range s.teardown {
		teardown()
	}
	fmt.Println(" --> test suite cleanup done")
}

// newClient returns a client with its own cookie jar, so every test has its own session
func (s *IntegrationTestSuite) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func getTestConfig(redisPort, postgresPort string) *config.Config {
	return &config.Config{
		Environment:                 "development",
		Host:                        serverHost,
		Port:                        serverPort,
		RedisHost:                   "localhost",
		RedisPort:                   redisPort,
		PostgresPort:                postgresPort,
		PostgresHost:                "localhost",
		PostgresDBName:              testDBName,
		PostgresUser:                "postgres",
		PrometheusMetricsHost:       serverHost,
		PrometheusMetricsPort:       "9002",
		TokenTTLSeconds:             60,
		SessionMaxAgeSeconds:        3600,
		SessionBackend:              config.SessionBackendRedis,
		LoginRateLimitAllowedPerMin: 100,
	}
}

func (s *IntegrationTestSuite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := redisResource.Close(); err != nil {
			fmt.Printf("redis teardown: %s\n", err)
		}
	})

	redisPort := redisResource.GetPort("6379/tcp")
	s.Redis = redis.NewClient(&redis.Options{
		Addr: "localhost:" + redisPort,
	})
	if err := s.dockerPool.Retry(func() error {
		return s.Redis.Ping(context.Background()).Err()
	}); err != nil {
		return "", fmt.Errorf("ping redis: %w", err)
	}
	return redisPort, nil
}

func (s *IntegrationTestSuite) postgresSetup() (string, error) {
	pgResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=" + testDBName,
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("dockerpool run postgres: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := pgResource.Close(); err != nil {
			fmt.Printf("postgres teardown: %s\n", err)
		}
	})

	pgPort := pgResource.GetPort("5432/tcp")
	dsn := fmt.Sprintf(
		"postgres://postgres@localhost:%s/%s?sslmode=disable",
		pgPort, testDBName,
	)

	if err := s.dockerPool.Retry(func() error {
		var err error
		s.DB, err = sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		return s.DB.Ping()
	}); err != nil {
		return "", fmt.Errorf("connect to db: %w", err)
	}

	if _, err := s.DB.Exec(db.Schema); err != nil {
		return "", fmt.Errorf("run schema: %w", err)
	}

	return pgPort, nil
}

func (s *IntegrationTestSuite) addTestUser() error {
	// min cost, the suite does not need to wait for cost 14 hashes
	hash, err := pkg.HashPasswordWithCost(testPassword, 4)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(
		`INSERT INTO users (username, password) VALUES ($1, $2) ON CONFLICT (username) DO NOTHING;`,
		testUsername, hash,
	)
	return err
}

func (s *IntegrationTestSuite) waitForServer() error {
	client := &http.Client{Timeout: time.Second}
	return s.dockerPool.Retry(func() error {
		resp, err := client.Get(serverEndpoint + "/version")
		if err != nil {
			return err
		}
		return resp.Body.Close()
	})
}
