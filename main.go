package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"federation-ledger-system/handlers"
	"federation-ledger-system/models"
	"federation-ledger-system/services"
	"federation-ledger-system/utils"
	"federation-ledger-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // ledger payloads are small JSON bodies
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Signature, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Wallet{},
		&models.Asset{},
		&models.Token{},
		&models.User{},
		&models.Place{},
		&models.Origin{},
		&models.Card{},
		&models.Checkout{},
		&models.Transaction{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledgerService := services.NewLedgerService(db)
	placeService := services.NewPlaceService(db)
	assetService := services.NewAssetService(db)
	fusionService := services.NewFusionService(db, ledgerService)
	walletService := services.NewWalletService(db, fusionService)
	checkoutService := services.NewCheckoutService(db, ledgerService, assetService)

	auditInterval := 30 * time.Second
	if v := os.Getenv("AUDIT_POLL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			log.Fatal("invalid AUDIT_POLL_INTERVAL:", err)
		}
		auditInterval = parsed
	}

	auditor := workers.NewChainAuditor(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollChain(ctx, auditor, auditInterval)

	ledgerService.StartAuditScheduler()

	handlers.SetupPlaceRoutes(app, placeService)
	handlers.SetupTransactionRoutes(app, ledgerService, placeService)
	handlers.SetupWalletRoutes(app, walletService, placeService)
	handlers.SetupCardRoutes(app, ledgerService, placeService)
	handlers.SetupAssetRoutes(app, assetService, placeService)
	handlers.SetupCheckoutRoutes(app, checkoutService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Ledger authority running on http://localhost:%s", port)
	log.Printf("✅ Chain audit polling running (every %s)", auditInterval)
	log.Println("✅ Daily full-chain verification scheduled")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
