// Command create-admin creates the first administrator account, or promotes
// and resets the password of an existing one.
package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/star-events-ticketing/internal/config"
	"github.com/iliyamo/star-events-ticketing/internal/database"
	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
	"github.com/iliyamo/star-events-ticketing/internal/utils"
)

func main() {
	email := flag.String("email", "admin@starevents.lk", "administrator email")
	password := flag.String("password", "", "administrator password (required)")
	first := flag.String("first", "System", "first name")
	last := flag.String("last", "Administrator", "last name")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()
	log := config.NewLogger(cfg.Env)

	if err := utils.CheckPasswordPolicy(*password); err != nil {
		log.Fatalf("create-admin: %v (use -password)", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("create-admin: connect database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	users := repository.NewUserRepo(db)

	existing, err := users.GetByEmail(ctx, *email)
	switch {
	case err == nil:
		if err := users.SetRole(ctx, existing.ID, model.RoleAdmin); err != nil {
			log.WithError(err).Fatal("create-admin: promote user")
		}
		if err := users.SetPassword(ctx, existing.ID, *password, cfg.BcryptCost); err != nil {
			log.WithError(err).Fatal("create-admin: reset password")
		}
		log.WithFields(logrus.Fields{"user_id": existing.ID, "email": existing.Email}).Info("existing account promoted to admin and password reset")
	case errors.Is(err, repository.ErrUserNotFound):
		u := &model.User{Email: *email, FirstName: *first, LastName: *last, Role: model.RoleAdmin}
		if err := users.Create(ctx, u, *password, cfg.BcryptCost); err != nil {
			log.WithError(err).Fatal("create-admin: create user")
		}
		log.WithFields(logrus.Fields{"user_id": u.ID, "email": u.Email}).Info("admin account created")
	default:
		log.WithError(err).Fatal("create-admin: look up user")
	}
}
