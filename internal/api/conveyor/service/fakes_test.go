package conveyorService

import (
	conveyorRepository "ConveyorVision/internal/api/conveyor/repository"
	"ConveyorVision/internal/entity"
	"ConveyorVision/pkg/vision"
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

const (
	frameWidth  = 1200
	frameHeight = 300
)

// fakeBackend returns scripted edges and flow so the tests control what the
// belt core sees. With edges at 100 and 1100 a 125px shift per 100ms is
// exactly 1.5 m/s.
type fakeBackend struct {
	mu       sync.Mutex
	segments []vision.Segment
	dx       float32
}

func newFakeBackend() *fakeBackend {
	fb := &fakeBackend{dx: 125}
	fb.setEdges(100, 1100)
	return fb
}

func (f *fakeBackend) setEdges(left, right int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = []vision.Segment{
		{X1: left, Y1: 0, X2: left, Y2: frameHeight - 1},
		{X1: right, Y1: 0, X2: right, Y2: frameHeight - 1},
	}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Grayscale(img image.Image) (*vision.Gray, error) {
	return vision.FromImage(img)
}

func (f *fakeBackend) ExtractLines(g *vision.Gray, p vision.LineParams) ([]vision.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vision.Segment(nil), f.segments...), nil
}

func (f *fakeBackend) DenseFlow(prev, next *vision.Gray) (*vision.Flow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flow := &vision.Flow{Cols: 16, Rows: 1, Step: 8, DX: make([]float32, 16), DY: make([]float32, 16)}
	for i := range flow.DX {
		flow.DX[i] = f.dx
	}
	return flow, nil
}

func (f *fakeBackend) FindContours(g *vision.Gray, p vision.ContourParams) (*vision.ContourSet, error) {
	return &vision.ContourSet{Enhanced: g}, nil
}

type fakeAlerts struct {
	mu     sync.Mutex
	events []entity.AlertEvent
	err    error
}

func (f *fakeAlerts) SaveAlert(ctx context.Context, event entity.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAlerts) GetRecentAlerts(ctx context.Context, cameraID string, limit int64) ([]entity.AlertEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.AlertEvent
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].CameraID == cameraID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []entity.DetectionLog
}

func (f *fakeLogs) SaveDetectionLog(ctx context.Context, entry entity.DetectionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogs) GetRecentLogs(ctx context.Context, cameraID string, limit int64) ([]entity.DetectionLog, error) {
	return nil, nil
}

type fakeRepo struct {
	alerts *fakeAlerts
	logs   *fakeLogs
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{alerts: &fakeAlerts{}, logs: &fakeLogs{}}
}

func (r *fakeRepo) NewClient() conveyorRepository.Client {
	return conveyorRepository.Client{Alerts: r.alerts, Logs: r.logs}
}

type published struct {
	key     string
	payload []byte
}

type fakeKafka struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (f *fakeKafka) Publish(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{key, value})
	return nil
}

func (f *fakeKafka) Close() error { return nil }

type fakeMQTT struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (f *fakeMQTT) Publish(cameraID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{cameraID, payload})
	return nil
}

func (f *fakeMQTT) Disconnect() {}

type fakeDetector struct {
	objects []entity.DetectedObject
	err     error
	calls   int
}

func (f *fakeDetector) Detect(ctx context.Context, frame []byte) ([]entity.DetectedObject, error) {
	f.calls++
	return f.objects, f.err
}

func (f *fakeDetector) Close() {}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, frameWidth, frameHeight))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeSnapshots struct {
	mu      sync.Mutex
	keys    []string
	bodies  [][]byte
	err     error
	signErr error
}

func (f *fakeSnapshots) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, body)
	return "https://snapshots.example/" + key, nil
}

func (f *fakeSnapshots) PresignURL(key string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://snapshots.example/" + key + "?signed=1", nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []entity.AlertEvent
	err  error
}

func (f *fakeMailer) SendAlert(event entity.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, event)
	return nil
}
