package e2e

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"chat-relay/auth"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	relayruntime "chat-relay/runtime"
	"chat-relay/server"
	"chat-relay/services"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config

	baseURL  string
	verifier *auth.Verifier
	embedded *httptest.Server
	db       *badger.DB
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.verifier = auth.NewVerifier(s.Config.AuthSecret)
}

// SetupTest boots a fresh full stack per scenario unless RELAY_ADDR
// targets an external deployment.
func (s *BaseRelaySuite) SetupTest() {
	if s.Config.RelayAddr != "" {
		s.baseURL = "http://" + s.Config.RelayAddr
		return
	}

	log := slog.Default()
	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.db = db

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	s.Require().NoError(err)

	moderator, err := moderation.NewEmbeddedModerator('*')
	s.Require().NoError(err)

	registry := relayruntime.NewRegistry()
	monitoring := observability.NewMonitoringManager(log)
	store := repositories.NewMessageRepository(db, log)
	index := repositories.NewSearchIndex(writer, log)
	relayService := services.NewRelayService(log, registry, store, index, moderator, monitoring, 50)
	handler := server.NewHandler(log, relayService, registry, monitoring, 64, time.Second)
	srv := server.NewServer(log, relayService, handler, s.verifier, monitoring)

	s.embedded = httptest.NewServer(srv.Router())
	s.baseURL = s.embedded.URL
}

func (s *BaseRelaySuite) TearDownTest() {
	if s.embedded != nil {
		s.embedded.Close()
		s.embedded = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

// Step prints a colorized header so scenario logs read like a script
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Dial opens a websocket for the given user, signing a token when the
// suite runs with auth enabled.
func (s *BaseRelaySuite) Dial(userID string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(s.baseURL, "http") + "/ws"
	if s.verifier.Enabled() {
		token, err := s.verifier.Sign(userID, time.Hour)
		s.Require().NoError(err)
		wsURL += "?token=" + token
	}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = ws.Close() })
	deadline := time.Duration(s.Config.ReadTimeout) * time.Second
	s.Require().NoError(ws.SetReadDeadline(time.Now().Add(deadline)))
	return ws
}

// Send marshals and writes one frame, dumping it when E2E_DEBUG_JSON is on
func (s *BaseRelaySuite) Send(ws *websocket.Conn, frame map[string]any) {
	if s.Config.DebugJSON {
		body, _ := json.MarshalIndent(frame, "", "  ")
		s.T().Logf(">>> %s", body)
	}
	s.Require().NoError(ws.WriteJSON(frame))
}

// Receive blocks for the next frame and decodes it as a generic object
func (s *BaseRelaySuite) Receive(ws *websocket.Conn) map[string]any {
	_, data, err := ws.ReadMessage()
	s.Require().NoError(err)
	if s.Config.DebugJSON {
		s.T().Logf("<<< %s", data)
	}
	var frame map[string]any
	s.Require().NoError(json.Unmarshal(data, &frame))
	return frame
}

// PostJSON calls an authenticated endpoint as the given user
func (s *BaseRelaySuite) PostJSON(path, userID string, payload, out any) *http.Response {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)
	req, err := http.NewRequest(http.MethodPost, s.baseURL+path, strings.NewReader(string(body)))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req, userID)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// GetJSON calls an authenticated GET endpoint and decodes the reply
func (s *BaseRelaySuite) GetJSON(path, userID string, out any) *http.Response {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+path, nil)
	s.Require().NoError(err)
	s.authorize(req, userID)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (s *BaseRelaySuite) authorize(req *http.Request, userID string) {
	if !s.verifier.Enabled() {
		return
	}
	token, err := s.verifier.Sign(userID, time.Hour)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
}
