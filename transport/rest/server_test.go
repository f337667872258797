package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/memorygame-backend/internal/config"
	"github.com/rocketscienceinc/memorygame-backend/internal/entity"
	"github.com/rocketscienceinc/memorygame-backend/internal/repository"
	"github.com/rocketscienceinc/memorygame-backend/internal/repository/storage"
	"github.com/rocketscienceinc/memorygame-backend/internal/usecase"
)

const cookieName = "memory_session"

// noShuffle keeps the sorted deck: positions 2k and 2k+1 hold value k+1.
func noShuffle(int, func(i, j int)) {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort: "0",
		BasePath: "/game",
		Storage:  config.StorageMemory,
		Session: config.Session{
			CookieName: cookieName,
			TTL:        time.Minute,
		},
		HTTP: config.HTTP{
			HandlerTimeout: 5 * time.Second,
		},
	}
}

type testClient struct {
	t      *testing.T
	url    string
	client *http.Client
}

type response struct {
	status int
	header http.Header
	body   map[string]any
	raw    string
}

func newTestServer(t *testing.T, game gameUseCase) *httptest.Server {
	t.Helper()

	srv := New(discardLogger(), testConfig(), game, NewMetrics(prometheus.NewRegistry()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func newMemoryGame() gameUseCase {
	gameRepo := repository.NewGameRepository(storage.NewMemoryStorage(time.Minute))
	return usecase.NewGameUseCase(discardLogger(), gameRepo, noShuffle)
}

func newClient(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testClient{t: t, url: ts.URL, client: &http.Client{Jar: jar}}
}

func (that *testClient) do(method, path, body string) response {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, that.url+path, reader)
	require.NoError(that.t, err)

	resp, err := that.client.Do(req)
	require.NoError(that.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(that.t, err)

	result := response{status: resp.StatusCode, header: resp.Header, raw: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(that.t, json.Unmarshal(raw, &result.body), string(raw))
	}

	return result
}

func (that *testClient) move(pos1, pos2 int) response {
	return that.do(http.MethodPost, "/game/move", fmt.Sprintf(`{"pos1":%d,"pos2":%d}`, pos1, pos2))
}

func sessionCookieFrom(resp response) *http.Cookie {
	for _, cookie := range (&http.Response{Header: resp.header}).Cookies() {
		if cookie.Name == cookieName {
			return cookie
		}
	}

	return nil
}

func TestServer_Start(t *testing.T) {
	t.Run("Returns grid size without card values", func(t *testing.T) {
		// Given: a fresh client
		client := newClient(t, newTestServer(t, newMemoryGame()))

		// When: starting a game
		resp := client.do(http.MethodPost, "/game/start", "")

		// Then: only the board size is revealed
		require.Equal(t, http.StatusOK, resp.status)
		assert.Equal(t, "application/json; charset=utf-8", resp.header.Get("Content-Type"))
		assert.Equal(t, map[string]any{
			"success":  true,
			"gridSize": float64(entity.BoardSize),
			"message":  "Game started successfully",
		}, resp.body)
	})

	t.Run("Issues a session cookie", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))

		resp := client.do(http.MethodPost, "/game/start", "")

		cookie := sessionCookieFrom(resp)
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, "/", cookie.Path)
		assert.Equal(t, int(time.Minute.Seconds()), cookie.MaxAge)
		assert.NotEmpty(t, cookie.Value)
	})

	t.Run("Restart resets the score", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))
		client.do(http.MethodPost, "/game/start", "")
		client.move(0, 1)

		client.do(http.MethodPost, "/game/start", "")
		resp := client.do(http.MethodPost, "/game/score", "")

		assert.Equal(t, float64(0), resp.body["moves"])
		assert.Equal(t, float64(0), resp.body["matchedPairs"])
	})
}

func TestServer_Move(t *testing.T) {
	t.Run("Returns 400 before the game starts", func(t *testing.T) {
		// Given: a client without a game
		client := newClient(t, newTestServer(t, newMemoryGame()))

		// When: moving
		resp := client.move(0, 1)

		// Then: the game is reported as not started
		assert.Equal(t, http.StatusBadRequest, resp.status)
		assert.Equal(t, map[string]any{"error": "Game not started"}, resp.body)
	})

	t.Run("Not started wins over invalid positions", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))

		resp := client.move(5, 5)

		assert.Equal(t, http.StatusBadRequest, resp.status)
		assert.Equal(t, "Game not started", resp.body["error"])
	})

	t.Run("Rejects invalid positions", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))
		client.do(http.MethodPost, "/game/start", "")

		for _, positions := range [][2]int{{3, 3}, {-1, 0}, {0, 16}, {16, 17}} {
			resp := client.move(positions[0], positions[1])

			assert.Equal(t, http.StatusBadRequest, resp.status, positions)
			assert.Equal(t, "Invalid card positions", resp.body["error"], positions)
		}

		// rejected moves are not counted
		score := client.do(http.MethodPost, "/game/score", "")
		assert.Equal(t, float64(0), score.body["moves"])
	})

	t.Run("Reports a mismatch", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))
		client.do(http.MethodPost, "/game/start", "")

		resp := client.move(0, 2)

		require.Equal(t, http.StatusOK, resp.status)
		assert.Equal(t, map[string]any{
			"success": true,
			"match":   false,
			"card1":   float64(1),
			"card2":   float64(2),
			"moves":   float64(1),
			"gameWon": false,
		}, resp.body)
	})

	t.Run("Wins after matching every pair", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))
		client.do(http.MethodPost, "/game/start", "")

		var resp response
		for pair := 0; pair < entity.PairCount; pair++ {
			resp = client.move(2*pair, 2*pair+1)
			require.Equal(t, http.StatusOK, resp.status)
			assert.Equal(t, true, resp.body["match"])
		}

		// Then: the last move wins the game
		assert.Equal(t, true, resp.body["gameWon"])
		assert.Equal(t, float64(entity.PairCount), resp.body["moves"])

		score := client.do(http.MethodPost, "/game/score", "")
		assert.Equal(t, float64(entity.PairCount), score.body["matchedPairs"])
		assert.Equal(t, true, score.body["gameWon"])
	})

	t.Run("Returns 500 on malformed bodies", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))
		client.do(http.MethodPost, "/game/start", "")

		for _, body := range []string{"", "{", `{"pos1":"a","pos2":1}`, `{"pos1":1}`} {
			resp := client.do(http.MethodPost, "/game/move", body)

			assert.Equal(t, http.StatusInternalServerError, resp.status, body)
			assert.NotEmpty(t, resp.body["error"], body)
		}
	})

	t.Run("Serializes simultaneous moves", func(t *testing.T) {
		// Given: a started game shared by many concurrent requests
		client := newClient(t, newTestServer(t, newMemoryGame()))
		client.do(http.MethodPost, "/game/start", "")

		const workers = 20
		var wg sync.WaitGroup
		wg.Add(workers)

		// When: all of them move at once
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				client.move(0, 2)
			}()
		}
		wg.Wait()

		// Then: no move is lost
		score := client.do(http.MethodPost, "/game/score", "")
		assert.Equal(t, float64(workers), score.body["moves"])
	})
}

func TestServer_Score(t *testing.T) {
	t.Run("Defaults to zero without a game", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))

		resp := client.do(http.MethodPost, "/game/score", "")

		require.Equal(t, http.StatusOK, resp.status)
		assert.Equal(t, map[string]any{
			"success":      true,
			"moves":        float64(0),
			"matchedPairs": float64(0),
			"gameWon":      false,
		}, resp.body)
	})

	t.Run("Does not change the state", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))
		client.do(http.MethodPost, "/game/start", "")
		client.move(0, 1)

		first := client.do(http.MethodPost, "/game/score", "")
		second := client.do(http.MethodPost, "/game/score", "")

		assert.Equal(t, first.body, second.body)
		assert.Equal(t, float64(1), second.body["matchedPairs"])
	})
}

func TestServer_Routing(t *testing.T) {
	t.Run("GET behaves like POST", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))

		require.Equal(t, http.StatusOK, client.do(http.MethodGet, "/game/start", "").status)
		moved := client.do(http.MethodGet, "/game/move", `{"pos1":0,"pos2":1}`)
		score := client.do(http.MethodGet, "/game/score", "")

		assert.Equal(t, true, moved.body["match"])
		assert.Equal(t, float64(1), score.body["matchedPairs"])
	})

	t.Run("Unknown paths return 404", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))

		for _, path := range []string{"/game/unknown", "/game", "/nope"} {
			resp := client.do(http.MethodPost, path, "")

			assert.Equal(t, http.StatusNotFound, resp.status, path)
			assert.Equal(t, map[string]any{"error": "Endpoint not found"}, resp.body, path)
		}
	})

	t.Run("Panics return 500 with the message", func(t *testing.T) {
		client := newClient(t, newTestServer(t, panickingGame{}))

		resp := client.do(http.MethodPost, "/game/start", "")

		assert.Equal(t, http.StatusInternalServerError, resp.status)
		assert.Equal(t, map[string]any{"error": `boom "quoted"`}, resp.body)
	})

	t.Run("Ping answers pong", func(t *testing.T) {
		client := newClient(t, newTestServer(t, newMemoryGame()))

		resp := client.do(http.MethodGet, "/ping", "")

		assert.Equal(t, http.StatusOK, resp.status)
		assert.Equal(t, "pong", resp.raw)
	})
}

func TestServer_Session(t *testing.T) {
	t.Run("Cookie is issued once and reused", func(t *testing.T) {
		// Given: a client that already has a session
		client := newClient(t, newTestServer(t, newMemoryGame()))
		first := client.do(http.MethodPost, "/game/start", "")
		require.NotNil(t, sessionCookieFrom(first))

		// When: making another request
		second := client.do(http.MethodPost, "/game/score", "")

		// Then: no new cookie is set and the game is found
		assert.Nil(t, sessionCookieFrom(second))
		assert.Equal(t, http.StatusOK, client.move(0, 1).status)
	})

	t.Run("Sessions are independent", func(t *testing.T) {
		ts := newTestServer(t, newMemoryGame())
		alice := newClient(t, ts)
		bob := newClient(t, ts)

		alice.do(http.MethodPost, "/game/start", "")

		assert.Equal(t, http.StatusOK, alice.move(0, 1).status)
		assert.Equal(t, http.StatusBadRequest, bob.move(0, 1).status)
	})

	t.Run("Malformed cookie is replaced", func(t *testing.T) {
		ts := newTestServer(t, newMemoryGame())

		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, ts.URL+"/game/score", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: "not-a-uuid"})

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var issued *http.Cookie
		for _, cookie := range resp.Cookies() {
			if cookie.Name == cookieName {
				issued = cookie
			}
		}
		require.NotNil(t, issued)
		assert.NotEqual(t, "not-a-uuid", issued.Value)
	})
}

func TestServer_Metrics(t *testing.T) {
	t.Run("Exposes game counters", func(t *testing.T) {
		// Given: a won game
		client := newClient(t, newTestServer(t, newMemoryGame()))
		client.do(http.MethodPost, "/game/start", "")
		for pair := 0; pair < entity.PairCount; pair++ {
			client.move(2*pair, 2*pair+1)
		}
		client.move(0, 2)

		// When: scraping metrics
		resp := client.do(http.MethodGet, "/metrics", "")

		// Then: the counters reflect the game
		require.Equal(t, http.StatusOK, resp.status)
		assert.Contains(t, resp.raw, "memorygame_games_started_total 1")
		assert.Contains(t, resp.raw, "memorygame_games_won_total 1")
		assert.Contains(t, resp.raw, `memorygame_moves_total{outcome="match"} 8`)
		assert.Contains(t, resp.raw, `memorygame_moves_total{outcome="miss"} 1`)
		assert.Contains(t, resp.raw, `memorygame_http_requests_total{code="200",method="POST",route=`)
	})
}

type panickingGame struct{}

func (panickingGame) StartGame(context.Context, string) error {
	panic(`boom "quoted"`)
}

func (panickingGame) MakeMove(context.Context, string, int, int) (*entity.MoveResult, error) {
	panic("boom")
}

func (panickingGame) GetScore(context.Context, string) (entity.Score, error) {
	panic("boom")
}
