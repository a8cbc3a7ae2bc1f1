package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "shopledger/internal/adapters/web"
	"shopledger/internal/ai"
	"shopledger/internal/app"
	"shopledger/internal/core"
	"shopledger/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	userService := core.NewUserService(pool)
	partyService := core.NewPartyService(pool)
	stockService := core.NewStockService(pool)
	docService := core.NewDocumentService(pool, stockService)
	cashService := core.NewCashService(pool)
	balanceService := core.NewBalanceService(pool, cashService)
	returnService := core.NewReturnService(pool, stockService, cashService)

	var agent *ai.Agent
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		agent = ai.NewAgent(apiKey)
	} else {
		log.Println("Warning: OPENAI_API_KEY is not set, AI assistant disabled")
	}

	svc := app.NewAppService(userService, partyService, stockService, docService,
		balanceService, returnService, cashService, agent)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, jwtSecret)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
