package sse

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

func startManager(t *testing.T) *Manager {
	t.Helper()

	m := NewManager(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()

	select {
	case ev := <-c.EventChan:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, EventType("tags.createComplete"), EventTypeFor(tagstore.TypeCreateComplete))
	assert.Equal(t, EventType("assets.updateRequest"), EventTypeFor(tagstore.TypeAssetUpdateRequest))
}

func TestManager_ForwardBroadcasts(t *testing.T) {
	m := startManager(t)

	all, err := m.Connect()
	require.NoError(t, err)
	creates, err := m.Connect(EventTypeFor(tagstore.TypeCreateComplete))
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())

	m.Forward(tagstore.Dispatched{Action: tagstore.Sort{}, Seq: 1})
	m.Forward(tagstore.Dispatched{
		Action: tagstore.CreateComplete{Tag: domain.Tag{ID: "tag-1", Name: domain.NewSlug("Red")}},
		Seq:    2,
	})

	ev := receive(t, all)
	assert.Equal(t, EventType("tags.sort"), ev.Type)
	assert.EqualValues(t, 1, ev.Seq)
	assert.Equal(t, EventType("tags.createComplete"), receive(t, all).Type)

	ev = receive(t, creates)
	assert.Equal(t, EventType("tags.createComplete"), ev.Type, "filtered client skips other types")
	assert.EqualValues(t, 2, ev.Seq)
}

func TestManager_Disconnect(t *testing.T) {
	m := startManager(t)

	client, err := m.Connect()
	require.NoError(t, err)

	m.Disconnect(client.ID)
	m.Disconnect(client.ID)

	assert.Zero(t, m.ClientCount())
	_, open := <-client.Done
	assert.False(t, open)
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))
	go m.Start(context.Background())

	client, err := m.Connect()
	require.NoError(t, err)

	// A delivered event proves the broadcast loop is running.
	m.Emit(NewHeartbeatEvent())
	assert.Equal(t, EventHeartbeat, receive(t, client).Type)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, m.Shutdown(ctx))

	m.Emit(NewHeartbeatEvent())
	select {
	case <-client.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("client not closed on shutdown")
	}
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := startManager(t)
	srv := httptest.NewServer(NewHandler(m, slog.New(slog.DiscardHandler)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?types=tags.sort", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var lastID string
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "id: "):
				lastID = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return name, data
			}
		}
	}

	name, data := readEvent()
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, "client_id")
	assert.Empty(t, lastID, "connected event has no id")

	m.Forward(tagstore.Dispatched{Action: tagstore.FetchRequest{}, Seq: 1})
	m.Forward(tagstore.Dispatched{Action: tagstore.Sort{}, Seq: 2})

	name, data = readEvent()
	assert.Equal(t, "tags.sort", name)
	assert.Contains(t, data, `"seq":2`)
	assert.Equal(t, "2", lastID)
}

func TestHandler_RejectsNonGet(t *testing.T) {
	h := NewHandler(NewManager(slog.New(slog.DiscardHandler)), slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tags/stream", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(""))
	assert.Equal(t, []EventType{"tags.sort", "tags.fetchComplete"}, parseTypes(" tags.sort, ,tags.fetchComplete"))
}
