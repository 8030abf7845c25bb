package monitor

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// event is one message from the controller's job event stream. Only
// the output payload is interesting here.
type event struct {
	GroupName string `json:"group_name"`
	Stdout    string `json:"stdout"`
}

// subscription is the frame that selects which event groups the
// controller should push on this connection.
type subscription struct {
	Groups map[string][]int `json:"groups"`
}

// FollowOutput streams the job's live output lines to w until the
// stream closes or ctx is done. Callers treat failure as a degraded
// mode and fall back to plain status polling; the wait result never
// depends on the stream.
func (m *Monitor) FollowOutput(ctx context.Context, jobID int, w io.Writer) error {
	session := m.client.Session()

	wsURL := session.Host + "/websocket/"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	header := http.Header{}
	auth := base64.StdEncoding.EncodeToString([]byte(session.Username + ":" + session.Password))
	header.Set("Authorization", "Basic "+auth)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("connecting to event stream: %w", err)
	}
	defer conn.Close()

	sub := subscription{Groups: map[string][]int{"job_events": {jobID}}}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribing to job %d events: %w", jobID, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading event stream: %w", err)
		}
		if ev.Stdout != "" {
			fmt.Fprintln(w, ev.Stdout)
		}
	}
}
