package conveyorService

import (
	"ConveyorVision/internal/api/conveyor"
	"ConveyorVision/internal/belt"
	"ConveyorVision/internal/entity"
	"ConveyorVision/pkg/metrics"
	"ConveyorVision/pkg/response"
	"ConveyorVision/pkg/utils"
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"
)

type harness struct {
	svc      IConveyorService
	backend  *fakeBackend
	repo     *fakeRepo
	kafka    *fakeKafka
	mqtt     *fakeMQTT
	detector *fakeDetector
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T, withDetector bool) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(),
		repo:    newFakeRepo(),
		kafka:   &fakeKafka{},
		mqtt:    &fakeMQTT{},
		metrics: metrics.New(),
	}
	opts := []Option{WithBackend(h.backend), WithKafka(h.kafka), WithMQTT(h.mqtt)}
	if withDetector {
		h.detector = &fakeDetector{}
		opts = append(opts, WithObjectDetector(h.detector))
	}
	h.svc = NewConveyorService(quietLogger(), h.repo, utils.New(), h.metrics, belt.DefaultConfig(), opts...)
	return h
}

func at(i int) time.Time {
	return time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC).Add(time.Duration(i) * 100 * time.Millisecond)
}

func (h *harness) analyze(t *testing.T, i int) *conveyor.AnalysisResponse {
	t.Helper()
	resp, err := h.svc.Analyze(context.Background(), "cam-1", pngFrame(t), at(i))
	if err != nil {
		t.Fatalf("Analyze(%d): %v", i, err)
	}
	return resp
}

func TestAnalyzeRejectsUndecodableFrame(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.Analyze(ctx, "cam-1", []byte("definitely not a png"), at(0))
	if !errors.Is(err, conveyor.ErrInvalidFrame) {
		t.Fatalf("err = %v, want ErrInvalidFrame", err)
	}
	if _, err := h.svc.Analyze(ctx, "cam-1", nil, at(0)); !errors.Is(err, conveyor.ErrInvalidFrame) {
		t.Fatalf("empty body err = %v", err)
	}
	if got := h.metrics.FramesRejected.Load(); got != 2 {
		t.Errorf("frames rejected = %d", got)
	}
	if _, err := h.svc.Status(ctx, "cam-1"); !errors.Is(err, conveyor.ErrCameraNotFound) {
		t.Errorf("rejected frames must not create a session, status err = %v", err)
	}
}

func TestAnalyzeRequiresCameraID(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.Analyze(context.Background(), "", pngFrame(t), at(0))
	if !errors.Is(err, conveyor.ErrInvalidCameraID) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeNominalRun(t *testing.T) {
	h := newHarness(t, false)

	var resp *conveyor.AnalysisResponse
	for i := 0; i < 3; i++ {
		resp = h.analyze(t, i)
	}

	if resp.CameraID != "cam-1" || resp.MonitorID == "" {
		t.Errorf("response ids = %q / %q", resp.CameraID, resp.MonitorID)
	}
	if r := resp.Result; math.Abs(r.Speed.CurrentMPS-1.5) > 1e-6 || r.Alert != nil {
		t.Errorf("speed = %.3f alert = %+v", r.Speed.CurrentMPS, r.Alert)
	}
	if len(resp.Events) != 0 {
		t.Errorf("unexpected events %+v", resp.Events)
	}
	if got := len(h.repo.logs.entries); got != 3 {
		t.Errorf("detection logs = %d", got)
	}
	if got := h.metrics.FramesAnalyzed.Load(); got != 3 {
		t.Errorf("frames analysed = %d", got)
	}
	if got := h.metrics.ActiveCameras.Load(); got != 1 {
		t.Errorf("active cameras = %d", got)
	}

	status, err := h.svc.Status(context.Background(), "cam-1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Frames != 3 || !status.Calibrated || status.LastResult != resp.Result {
		t.Errorf("status = %+v", status)
	}
	if math.Abs(status.PixelsPerMM-1000.0/1200.0) > 1e-9 {
		t.Errorf("pixels per mm = %f", status.PixelsPerMM)
	}
}

func TestAlertsAreDebounced(t *testing.T) {
	h := newHarness(t, false)

	h.analyze(t, 0)

	h.backend.setEdges(20, 960)
	first := h.analyze(t, 1)
	if len(first.Events) != 1 {
		t.Fatalf("events = %+v", first.Events)
	}
	ev := first.Events[0]
	if ev.Kind != entity.AlertKindAlignment || ev.Severity != entity.AlertSeverityCritical {
		t.Errorf("event = %+v", ev)
	}
	if !strings.HasPrefix(ev.Message, "CRITICAL: Belt misaligned") || ev.CameraID != "cam-1" || ev.ID == "" {
		t.Errorf("event = %+v", ev)
	}
	if !ev.CreatedAt.Equal(at(1)) {
		t.Errorf("created at = %v", ev.CreatedAt)
	}

	if repeat := h.analyze(t, 2); len(repeat.Events) != 0 {
		t.Errorf("repeated alert published again: %+v", repeat.Events)
	}

	h.backend.setEdges(100, 1100)
	if clear := h.analyze(t, 3); clear.Result.Alert != nil || len(clear.Events) != 0 {
		t.Errorf("recentred belt: alert %+v events %+v", clear.Result.Alert, clear.Events)
	}

	h.backend.setEdges(20, 960)
	if again := h.analyze(t, 4); len(again.Events) != 1 {
		t.Errorf("alert after a quiet frame should publish again: %+v", again.Events)
	}

	if got := len(h.repo.alerts.events); got != 2 {
		t.Errorf("stored alerts = %d", got)
	}
	if got := len(h.kafka.messages); got != 2 || h.kafka.messages[0].key != "cam-1" {
		t.Errorf("kafka messages = %+v", h.kafka.messages)
	}
	if got := len(h.mqtt.messages); got != 2 {
		t.Errorf("mqtt messages = %d", got)
	}
	if got := h.metrics.AlertsPublished.Load(); got != 2 {
		t.Errorf("alerts published = %d", got)
	}

	list, err := h.svc.RecentAlerts(context.Background(), "cam-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Alerts) != 2 || !list.Alerts[0].CreatedAt.Equal(at(4)) {
		t.Errorf("recent alerts = %+v", list.Alerts)
	}
}

func TestSinkFailuresDoNotFailAnalysis(t *testing.T) {
	h := newHarness(t, false)
	boom := errors.New("broker down")
	h.repo.alerts.err = boom
	h.kafka.err = boom
	h.mqtt.err = boom

	h.backend.setEdges(20, 960)
	resp := h.analyze(t, 0)

	if len(resp.Events) != 1 {
		t.Fatalf("events = %+v", resp.Events)
	}
	if got := h.metrics.PublishErrors.Load(); got != 3 {
		t.Errorf("publish errors = %d", got)
	}

	if _, err := h.svc.RecentAlerts(context.Background(), "cam-1", 10); !errors.Is(err, conveyor.ErrInternalServerError) {
		t.Errorf("recent alerts err = %v", err)
	}
}

func TestDetectorObjectsRaiseJamEvent(t *testing.T) {
	h := newHarness(t, true)
	h.detector.objects = []entity.DetectedObject{
		{Label: "Material_Pile", Confidence: 0.9, BBox: []float64{10.4, 20.6, 110, 220}},
		{Label: "person", Confidence: 0.99, BBox: []float64{0, 0, 5, 5}},
	}

	resp := h.analyze(t, 0)

	if h.detector.calls != 1 {
		t.Errorf("detector calls = %d", h.detector.calls)
	}
	if len(resp.Objects) != 2 {
		t.Errorf("objects = %+v", resp.Objects)
	}
	o := resp.Result.Obstruction
	if !o.Detected || len(o.Labels) != 1 || o.Labels[0] != "material_pile" {
		t.Fatalf("obstruction = %+v", o)
	}
	if len(resp.Events) != 1 || resp.Events[0].Kind != entity.AlertKindJam {
		t.Fatalf("events = %+v", resp.Events)
	}
	if resp.Events[0].Message != "WARNING: Possible obstruction on belt (material_pile)" {
		t.Errorf("message = %q", resp.Events[0].Message)
	}
}

func TestDetectorFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, true)
	h.detector.err = errors.New("dial tcp: connection refused")

	resp := h.analyze(t, 0)
	if resp.Result == nil || resp.Result.Obstruction.Detected {
		t.Fatalf("result = %+v", resp.Result)
	}
	if got := h.metrics.DetectorErrors.Load(); got != 1 {
		t.Errorf("detector errors = %d", got)
	}
}

func TestResetKeepsCalibration(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	if err := h.svc.Reset(ctx, "cam-1"); !errors.Is(err, conveyor.ErrCameraNotFound) {
		t.Fatalf("reset unknown camera err = %v", err)
	}

	h.analyze(t, 0)
	h.analyze(t, 1)
	if err := h.svc.Reset(ctx, "cam-1"); err != nil {
		t.Fatal(err)
	}

	status, _ := h.svc.Status(ctx, "cam-1")
	if status.LastResult != nil || !status.Calibrated || status.Baseline == nil {
		t.Errorf("status after reset = %+v", status)
	}

	resp := h.analyze(t, 2)
	if !resp.Result.Speed.InsufficientData {
		t.Errorf("first frame after reset should lack speed history: %+v", resp.Result.Speed)
	}
	if len(resp.Events) != 1 || resp.Events[0].Kind != entity.AlertKindStopped {
		t.Errorf("events after reset = %+v", resp.Events)
	}
}

func TestCaptureBaseline(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	resp, err := h.svc.CaptureBaseline(ctx, "cam-1", pngFrame(t))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Captured || resp.Baseline == nil || math.Abs(resp.Baseline.Mean-128) > 1e-9 {
		t.Errorf("baseline = %+v", resp)
	}

	if _, err := h.svc.CaptureBaseline(ctx, "cam-1", pngFrame(t)); !errors.Is(err, conveyor.ErrBaselineExists) {
		t.Errorf("second capture err = %v", err)
	}

	if first := h.analyze(t, 0); first.Result.Tear.BaselineCapture {
		t.Error("explicit baseline should stop the first frame becoming the baseline")
	}
}

func TestUpdateConfig(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	before := h.analyze(t, 0)

	bad := belt.DefaultConfig()
	bad.BeltWidthMM = 0
	_, err := h.svc.UpdateConfig(ctx, "cam-1", bad)
	var respErr *response.Error
	if !errors.As(err, &respErr) || respErr.Code != http.StatusBadRequest {
		t.Fatalf("invalid config err = %v", err)
	}

	cfg := belt.DefaultConfig()
	cfg.NominalSpeedMPS = 2
	status, err := h.svc.UpdateConfig(ctx, "cam-1", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if status.Config.NominalSpeedMPS != 2 || status.Calibrated || status.MonitorID == before.MonitorID {
		t.Errorf("status = %+v", status)
	}
	if h.svc.Config("cam-1").NominalSpeedMPS != 2 {
		t.Error("config not applied")
	}
	if h.svc.Config("cam-9").NominalSpeedMPS != belt.DefaultConfig().NominalSpeedMPS {
		t.Error("unknown camera should report defaults")
	}
	if got := h.metrics.ActiveCameras.Load(); got != 1 {
		t.Errorf("active cameras = %d", got)
	}
}

func TestVisualizeReturnsJPEG(t *testing.T) {
	h := newHarness(t, false)

	out, err := h.svc.Visualize(context.Background(), "cam-1", pngFrame(t), at(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) < 2 || out[0] != 0xFF || out[1] != 0xD8 {
		t.Fatal("visualize did not return a JPEG")
	}
	if got := h.metrics.FramesAnalyzed.Load(); got != 1 {
		t.Errorf("visualize should analyse the frame, frames = %d", got)
	}
}

func TestOnlyCriticalAlertsAreEmailed(t *testing.T) {
	mailer := &fakeMailer{}
	detector := &fakeDetector{objects: []entity.DetectedObject{{Label: "jam", Confidence: 0.8}}}
	backend := newFakeBackend()
	m := metrics.New()
	svc := NewConveyorService(quietLogger(), newFakeRepo(), utils.New(), m, belt.DefaultConfig(),
		WithBackend(backend), WithObjectDetector(detector), WithMailer(mailer))

	ctx := context.Background()
	if _, err := svc.Analyze(ctx, "cam-1", pngFrame(t), at(0)); err != nil {
		t.Fatal(err)
	}
	backend.setEdges(20, 960)
	resp, err := svc.Analyze(ctx, "cam-1", pngFrame(t), at(1))
	if err != nil {
		t.Fatal(err)
	}

	if len(mailer.sent) != 1 || mailer.sent[0].Severity != entity.AlertSeverityCritical {
		t.Fatalf("mailed = %+v, events = %+v", mailer.sent, resp.Events)
	}

	mailer.err = errors.New("relay denied")
	backend.setEdges(100, 1100)
	svc.Analyze(ctx, "cam-1", pngFrame(t), at(2))
	backend.setEdges(20, 960)
	if _, err := svc.Analyze(ctx, "cam-1", pngFrame(t), at(3)); err != nil {
		t.Fatalf("mail failure failed the analysis: %v", err)
	}
	if got := m.PublishErrors.Load(); got != 1 {
		t.Errorf("publish errors = %d", got)
	}
}
