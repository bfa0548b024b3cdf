package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"usersystem/internal/config"
	"usersystem/internal/database"
	"usersystem/internal/domain"
	"usersystem/internal/mailer"
	"usersystem/internal/middleware"
	"usersystem/internal/modules/auth"
	"usersystem/internal/pkg/token"
	"usersystem/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = "usersystem.db"
	}
	db, err := database.Connect(dsn, database.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.UserToken{}); err != nil {
		log.Fatal(err)
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewUserTokenRepository(db)

	tokens, err := token.New(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		log.Fatal(err)
	}

	mail := mailer.NewDispatcher(mailer.NewConsoleMailer(true), cfg.MailBuffer)
	defer mail.Close()

	authService := auth.NewService(userRepo, tokenRepo, tokens, mail, cfg)
	authHandler := auth.NewHandler(authService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.AllowOrigins))

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.Auth(tokens, userRepo))
		{
			authHandler.RegisterProtectedRoutes(protected)
		}
	}

	log.Printf("%s listening on %s", cfg.AppName, cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}
