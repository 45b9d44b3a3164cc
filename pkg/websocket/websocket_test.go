package websocketPkg

import (
	"ConveyorVision/internal/entity"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// detectorServer answers every binary frame with one detection labelled by
// the frame's content. A frame reading "stall" gets no answer.
func detectorServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "stall" {
				continue
			}
			result := entity.ObjectDetectionResult{
				Objects: []entity.DetectedObject{{Label: string(msg), Confidence: 0.9, BBox: []float64{1, 2, 3, 4}}},
			}
			if err := conn.WriteJSON(result); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDetectRoundTrip(t *testing.T) {
	srv := detectorServer(t)
	c := newDetectorClient(wsURL(srv), time.Second, quietLogger())
	defer c.Close()

	for _, label := range []string{"material_pile", "person"} {
		objects, err := c.Detect(context.Background(), []byte(label))
		if err != nil {
			t.Fatalf("Detect(%s): %v", label, err)
		}
		if len(objects) != 1 || objects[0].Label != label || objects[0].Confidence != 0.9 {
			t.Errorf("objects = %+v", objects)
		}
	}
	if got := len(c.idle); got != 1 {
		t.Errorf("idle connections = %d, want the one connection reused", got)
	}
}

func TestDetectHonoursContextDeadline(t *testing.T) {
	srv := detectorServer(t)
	c := newDetectorClient(wsURL(srv), 5*time.Second, quietLogger())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Detect(ctx, []byte("stall"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stalled detector held the caller for %s", elapsed)
	}
	if got := len(c.idle); got != 0 {
		t.Errorf("timed out connection returned to the pool")
	}
}

func TestDetectClientTimeout(t *testing.T) {
	srv := detectorServer(t)
	c := newDetectorClient(wsURL(srv), 100*time.Millisecond, quietLogger())
	defer c.Close()

	if _, err := c.Detect(context.Background(), []byte("stall")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestStalledCallDoesNotBlockOthers(t *testing.T) {
	srv := detectorServer(t)
	c := newDetectorClient(wsURL(srv), 3*time.Second, quietLogger())
	defer c.Close()

	stalled := make(chan error, 1)
	go func() {
		_, err := c.Detect(context.Background(), []byte("stall"))
		stalled <- err
	}()

	// let the stalled call take its connection first
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	objects, err := c.Detect(context.Background(), []byte("jam"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(objects) != 1 || objects[0].Label != "jam" {
		t.Errorf("objects = %+v", objects)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("second camera waited %s behind the stalled one", elapsed)
	}

	select {
	case err := <-stalled:
		if err == nil {
			t.Error("stalled call succeeded")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stalled call never returned")
	}
}

func TestDetectBacksOffAfterDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	c := newDetectorClient(url, time.Second, quietLogger())
	defer c.Close()

	if _, err := c.Detect(context.Background(), []byte("frame")); err == nil || errors.Is(err, ErrBackoff) {
		t.Fatalf("first err = %v, want dial failure", err)
	}
	if _, err := c.Detect(context.Background(), []byte("frame")); !errors.Is(err, ErrBackoff) {
		t.Errorf("second err = %v, want ErrBackoff", err)
	}
}

func TestDetectAfterClose(t *testing.T) {
	srv := detectorServer(t)
	c := newDetectorClient(wsURL(srv), time.Second, quietLogger())

	if _, err := c.Detect(context.Background(), []byte("belt")); err != nil {
		t.Fatal(err)
	}
	c.Close()

	if got := len(c.idle); got != 0 {
		t.Errorf("idle connections after close = %d", got)
	}
	if _, err := c.Detect(context.Background(), []byte("belt")); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
