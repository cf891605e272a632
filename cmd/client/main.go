package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"chat-relay/auth"
	"chat-relay/domain"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"RELAY_SERVER_ADDR,default=localhost:8080"`
	UserID        string `env:"RELAY_USER_ID,required=true"`
	PeerID        string `env:"RELAY_PEER_ID,required=true"`
	AuthSecret    string `env:"AUTH_SECRET"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run bootstraps a session with the peer, joins it over a websocket and
// relays stdin lines as message frames until interrupted.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var token string
	if config.AuthSecret != "" {
		var err error
		token, err = auth.NewVerifier(config.AuthSecret).Sign(config.UserID, time.Hour)
		if err != nil {
			return exitConfig, fmt.Errorf("could not sign token: %w", err)
		}
	}

	sessionID, err := bootstrapSession(config, token)
	if err != nil {
		return exitRuntime, err
	}
	color.Greenln("Session:", sessionID)

	wsURL := url.URL{Scheme: "ws", Host: config.ServerAddress, Path: "/ws"}
	if token != "" {
		wsURL.RawQuery = url.Values{"token": {token}}.Encode()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.ServerAddress, err)
	}
	defer ws.Close()

	join := map[string]string{
		"type":        "join",
		"userId":      config.UserID,
		"sessionId":   sessionID,
		"otherUserId": config.PeerID,
	}
	if err := ws.WriteJSON(join); err != nil {
		return exitRuntime, fmt.Errorf("join failed: %w", err)
	}

	go receive(ws, config.UserID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return exitOK, nil
		default:
		}
		content := strings.TrimSpace(scanner.Text())
		if content == "" {
			continue
		}
		frame := map[string]string{"type": "message", "content": content}
		if err := ws.WriteJSON(frame); err != nil {
			return exitRuntime, fmt.Errorf("send failed: %w", err)
		}
	}
	return exitOK, nil
}

func bootstrapSession(config Config, token string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"userId1": config.UserID,
		"userId2": config.PeerID,
	})
	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("http://%s/sessions", config.ServerAddress), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("bootstrap failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bootstrap failed with status %d", resp.StatusCode)
	}

	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// receive prints inbound frames until the connection drops.
func receive(ws *websocket.Conn, selfID string) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			color.Redln("Disconnected:", err)
			return
		}
		var frame domain.EventFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case domain.FrameMessage:
			if frame.From == selfID {
				color.Grayln(fmt.Sprintf("[%s] me: %s", frame.Timestamp.Format("15:04:05"), frame.Content))
			} else {
				color.Cyanln(fmt.Sprintf("[%s] %s: %s", frame.Timestamp.Format("15:04:05"), frame.From, frame.Content))
			}
		case domain.FrameNotification:
			color.Yellowln(fmt.Sprintf("New message from %s: %s", frame.From, frame.Content))
		case domain.FrameJoined:
			color.Greenln("Joined session")
		}
	}
}
