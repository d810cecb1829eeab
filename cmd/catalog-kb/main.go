package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsgeodata/catalog-kb-go/internal/answer"
	"github.com/fsgeodata/catalog-kb-go/internal/classifier"
	"github.com/fsgeodata/catalog-kb-go/internal/embeddings"
	"github.com/fsgeodata/catalog-kb-go/internal/generation"
	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
	"github.com/fsgeodata/catalog-kb-go/internal/retrieval"
	"github.com/fsgeodata/catalog-kb-go/internal/server"
	"github.com/fsgeodata/catalog-kb-go/internal/store"
)

var (
	dbURL       = flag.String("db-url", "", "Catalog database URL (default: file:./catalog.db)")
	authToken   = flag.String("auth-token", "", "Authentication token for remote databases")
	transport   = flag.String("transport", "stdio", "Transport to use: stdio or sse")
	addr        = flag.String("addr", ":8080", "Address to listen on when using SSE transport")
	sseEndpoint = flag.String("sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, closing server...")
		cancel()
	}()

	config := store.NewConfig()

	// Initialize metrics (noop if disabled)
	metrics.InitFromEnv()

	// Override with command line flags if provided
	if *dbURL != "" {
		config.URL = *dbURL
	}
	if *authToken != "" {
		config.AuthToken = *authToken
	}

	st, err := store.New(config, embeddings.NewFromEnv())
	if err != nil {
		log.Fatalf("Failed to open catalog store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()

	generator := generation.NewFromEnv()
	engine := retrieval.NewEngine(st, st, st.Provider())
	assembler := answer.New(st, engine, classifier.New(generator), generator)

	mcpServer := server.NewMCPServer(st, assembler)

	log.Println("Starting catalog knowledge base server...")
	switch *transport {
	case "stdio":
		go func() {
			if err := mcpServer.Run(ctx); err != nil {
				log.Printf("Server error: %v", err)
			}
		}()
	case "sse":
		go func() {
			if err := mcpServer.RunSSE(ctx, *addr, *sseEndpoint); err != nil {
				log.Printf("SSE server error: %v", err)
			}
		}()
	default:
		log.Fatalf("unknown transport: %s (expected: stdio or sse)", *transport)
	}

	<-ctx.Done()

	log.Println("Server stopped")
}
