package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"matchday_server/routes"
	"matchday_server/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load optional .env for local development
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	// Initialize DynamoDB client and stores
	log.Println("Initializing DynamoDB client...")
	dynamoClient := services.InitializeDynamoDBClient()
	dynamoService := &services.DynamoService{Client: dynamoClient}
	store := services.NewDynamoStore(dynamoService)
	log.Println("DynamoDB client initialized.")

	// Initialize services
	pushClient := services.NewExpoPushClient(os.Getenv("EXPO_PUSH_URL"))
	pushService := &services.PushService{Client: pushClient, Tokens: store}
	recipientService := &services.RecipientService{Store: store}
	rosterService := &services.RosterService{Store: store, Recipients: recipientService, Push: pushService}
	chatService := &services.ChatService{Store: store, Recipients: recipientService, Push: pushService}

	// Set up the server port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Using server port: %s\n", port)

	// Initialize the router
	r := mux.NewRouter()

	// Register a welcome route
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Welcome to Matchday")
	}).Methods("GET")

	// Register a health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]string{"status": "healthy"}
		json.NewEncoder(w).Encode(response)
	}).Methods("GET")

	// Register routes
	routes.RegisterEventRoutes(r, rosterService, chatService)
	routes.RegisterRSVPRoutes(r, rosterService)
	routes.RegisterChatRoutes(r, chatService)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Adjust for specific domains if needed
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}
