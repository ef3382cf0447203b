package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"identity/internal/config"
	"identity/internal/database"
	"identity/internal/domain"
	"identity/internal/middleware"
	"identity/internal/modules/auth"
	"identity/internal/modules/users"
	jwtsvc "identity/internal/pkg/jwt"
	"identity/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}

	if err := db.AutoMigrate(&domain.User{}, &domain.Role{}); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL)

	authService := auth.NewService(
		userRepo,
		roleRepo,
		j,
		auth.LogMailer{},
		cfg.RefreshTokenPepper,
		cfg.RefreshTokenTTL,
		cfg.ResetTokenTTL,
	)
	authHandler := auth.NewHandler(authService)

	usersService := users.NewService(userRepo, roleRepo)
	usersHandler := users.NewHandler(usersService)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			authHandler.RegisterProtectedRoutes(protected)
			usersHandler.RegisterRoutes(protected, middleware.AdminOnly())
		}
	}

	log.Printf("listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal(err)
	}
}
