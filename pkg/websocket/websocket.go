package websocketPkg

import (
	"ConveyorVision/internal/entity"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var (
	ErrBackoff = errors.New("object detector unavailable, retry later")
	ErrClosed  = errors.New("object detector client closed")
)

const (
	defaultDetectTimeout = 2 * time.Second
	maxIdleConns         = 4
)

type IObjectDetector interface {
	Detect(ctx context.Context, frame []byte) ([]entity.DetectedObject, error)
	Close()
}

// detectorClient keeps a small pool of connections to the detector. A
// connection is owned by one Detect call for the whole round trip, so a slow
// answer for one camera never holds up another.
type detectorClient struct {
	url          string
	timeout      time.Duration
	writeTimeout time.Duration
	retryDelay   time.Duration
	idle         chan *websocket.Conn
	log          logrus.FieldLogger

	mu          sync.Mutex
	nextAttempt time.Time
	closed      bool
}

// NewObjectDetectorClient connects in the background to the external object
// detector at OBJECT_DETECTOR_URL. Frames are sent as binary messages and the
// detector answers with one JSON ObjectDetectionResult per frame.
// OBJECT_DETECTOR_TIMEOUT bounds a single round trip.
func NewObjectDetectorClient(log logrus.FieldLogger) IObjectDetector {
	url := os.Getenv("OBJECT_DETECTOR_URL")
	if url == "" {
		url = "ws://localhost:8000/api/v1/detect/ws"
	}

	timeout := defaultDetectTimeout
	if raw := os.Getenv("OBJECT_DETECTOR_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			log.Warnf("Invalid OBJECT_DETECTOR_TIMEOUT %q, using %s", raw, defaultDetectTimeout)
		} else {
			timeout = d
		}
	}

	client := newDetectorClient(url, timeout, log)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conn, err := client.dial(ctx)
		if err != nil {
			client.log.Warnf("Initial connection to object detector failed: %v. Will retry on demand.", err)
			return
		}
		client.log.Infof("Connected to object detector at %s", url)
		client.release(conn)
	}()

	return client
}

func newDetectorClient(url string, timeout time.Duration, log logrus.FieldLogger) *detectorClient {
	return &detectorClient{
		url:          url,
		timeout:      timeout,
		writeTimeout: time.Second,
		retryDelay:   5 * time.Second,
		idle:         make(chan *websocket.Conn, maxIdleConns),
		log:          log.WithField("component", "object_detector"),
	}
}

func (c *detectorClient) dial(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if time.Now().Before(c.nextAttempt) {
		c.mu.Unlock()
		return nil, ErrBackoff
	}
	c.mu.Unlock()

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.timeout

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		// a caller giving up is not the detector's fault
		if ctx.Err() == nil {
			c.mu.Lock()
			c.nextAttempt = time.Now().Add(c.retryDelay)
			c.mu.Unlock()
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout)); err != nil {
			c.log.Debugf("Error sending pong: %v", err)
		}
		return nil
	})
	return conn, nil
}

func (c *detectorClient) acquire(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-c.idle:
		return conn, nil
	default:
	}
	return c.dial(ctx)
}

func (c *detectorClient) release(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		conn.Close()
		return
	}
	select {
	case c.idle <- conn:
	default:
		conn.Close()
	}
}

func (c *detectorClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for {
		select {
		case conn := <-c.idle:
			conn.Close()
		default:
			return
		}
	}
}

// Detect round-trips one encoded frame. The round trip ends at the earlier of
// ctx's deadline and the client timeout; a connection that fails or times out
// is discarded rather than returned to the pool.
func (c *detectorClient) Detect(ctx context.Context, frame []byte) ([]entity.DetectedObject, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	stop := context.AfterFunc(ctx, func() {
		conn.NetConn().SetDeadline(time.Now())
	})

	fail := func(op string, err error) error {
		stop()
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("error %s object detector: %w", op, ctxErr)
		}
		return fmt.Errorf("error %s object detector: %w", op, err)
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fail("writing to", err)
	}

	// no read deadline here; a stalled read ends when ctx does
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, fail("reading from", err)
	}

	if stop() {
		c.release(conn)
	} else {
		conn.Close()
	}

	var result entity.ObjectDetectionResult
	if err := jsoniter.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling detector response: %w", err)
	}

	c.log.WithField("objects", len(result.Objects)).Debug("Received object detections")
	return result.Objects, nil
}
