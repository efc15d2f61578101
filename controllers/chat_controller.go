package controllers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"matchday_server/models"
	"matchday_server/services"

	"github.com/google/uuid"
)

// ChatController struct
type ChatController struct {
	ChatService *services.ChatService
}

// NewChatController initializes the chat controller
func NewChatController(service *services.ChatService) *ChatController {
	return &ChatController{ChatService: service}
}

// GetMessagesByMatchID - fetch messages for a match in sequence order
func (c *ChatController) GetMessagesByMatchID(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("matchId")
	limitStr := r.URL.Query().Get("limit")

	if matchID == "" {
		http.Error(w, `{"error": "matchId is required"}`, http.StatusBadRequest)
		return
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 50
	}

	messages, err := c.ChatService.GetMessagesByMatchID(r.Context(), matchID, limit)
	if err != nil {
		log.Printf("Error fetching messages for match %s: %v", matchID, err)
		http.Error(w, `{"error": "Failed to fetch messages"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// SendMessage - store a new chat message and trigger sequencing and fan-out
func (c *ChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	var message models.ChatMessage
	if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if message.MatchID == "" || message.SenderID == "" || message.Text == "" {
		http.Error(w, `{"error": "Missing required fields: matchId, senderId, or text"}`, http.StatusBadRequest)
		return
	}

	if message.MessageID == "" {
		message.MessageID = uuid.New().String()
	}
	message.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	// Seq and the notification sentinels belong to the chat pipeline.
	message.Seq = 0
	message.NotifyClaimedAt = ""
	message.NotifiedAt = ""

	if err := c.ChatService.SendMessage(r.Context(), message); err != nil {
		log.Printf("Failed to send message %s/%s: %v", message.MatchID, message.MessageID, err)
		http.Error(w, `{"error": "Failed to send message"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "success",
		"messageId": message.MessageID,
	})
}
