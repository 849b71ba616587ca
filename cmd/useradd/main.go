// useradd creates an admin user for the portfolio service.
// The password is read from PORTFOLIO_NEW_USER_PASSWORD when the flag is not given,
// so it does not have to end up in the shell history.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tadeportfolio/portfolio/internal/auth"
	"github.com/tadeportfolio/portfolio/internal/config"
	"github.com/tadeportfolio/portfolio/internal/db"
	"github.com/tadeportfolio/portfolio/pkg"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	username := flag.String("username", "", "new user username")
	password := flag.String("password", "", "new user password (or use PORTFOLIO_NEW_USER_PASSWORD)")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("PORTFOLIO_NEW_USER_PASSWORD")
	}
	if *username == "" || *password == "" {
		log.Fatalln("username and password must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(ctx, *env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	secrets, err := config.LoadSecrets(ctx)
	if err != nil {
		log.Fatalf("load secrets: %s", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: secrets.PostgresPassword,
	})
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	if err := db.EnsureSchema(ctx, dbPool); err != nil {
		log.Fatalf("%s", err)
	}

	passwordHash, err := pkg.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %s", err)
	}

	user := &auth.User{
		Username:     *username,
		PasswordHash: passwordHash,
	}
	if err := auth.NewUsersRepo(dbPool).Add(ctx, user); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			log.Fatalf("user [%s] already exists", *username)
		}
		log.Fatalf("add user: %s", err)
	}

	log.Infof("user [%s] added with id %d", user.Username, user.ID)
}
