package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/andrew/voice-tutor/pkg/api"
	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

var (
	serverURL = flag.String("server", "http://localhost:8000", "Tutor server base URL")
	sessionID = flag.String("session", "", "Session id to resume (a new one is generated when empty)")
	timeout   = flag.Duration("timeout", 5*time.Minute, "Per-request timeout")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id := *sessionID
	if id == "" {
		id = uuid.NewString()
	}
	client := &chatClient{
		baseURL:   strings.TrimRight(*serverURL, "/"),
		sessionID: id,
		http:      &http.Client{Timeout: *timeout},
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Println(boldGreen("Tutor Chat"))
	fmt.Printf("Server: %s\n", boldCyan(client.baseURL))
	fmt.Printf("Session: %s\n", id)
	fmt.Println("Type your question and press Enter. '/reset' clears the conversation, 'exit' quits.")
	fmt.Println()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print(boldGreen("You: "))
		var input string
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			input = strings.TrimSpace(line)
		}

		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return
		case "/reset":
			if err := client.reset(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Println("Conversation cleared.")
			fmt.Println()
			continue
		}

		resp, err := client.chat(ctx, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Println("\nMake sure tutor-server is running.")
			continue
		}

		fmt.Print(boldCyan("Tutor: "))
		fmt.Println(emotionColor(resp.Emotion).Sprintf("[%s]", resp.Emotion), resp.Text)
		fmt.Println()
	}
}

func emotionColor(e models.Emotion) *color.Color {
	switch e {
	case models.EmotionHappy:
		return color.New(color.FgYellow)
	case models.EmotionThinking:
		return color.New(color.FgMagenta)
	case models.EmotionExplaining:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgWhite)
	}
}

type chatClient struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

func (c *chatClient) chat(ctx context.Context, query string) (api.TutorResponse, error) {
	body, err := json.Marshal(api.ChatRequest{SessionID: c.sessionID, Query: query})
	if err != nil {
		return api.TutorResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return api.TutorResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return api.TutorResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return api.TutorResponse{}, fmt.Errorf("server returned %s: %s", resp.Status, e.Error)
	}

	var out api.TutorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return api.TutorResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *chatClient) reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/sessions/"+c.sessionID, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
