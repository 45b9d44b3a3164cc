package conveyorService

import (
	"ConveyorVision/internal/api/conveyor"
	"ConveyorVision/internal/belt"
	"ConveyorVision/pkg/response"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// session is one camera's Monitor plus what the service remembers about it.
// mu serialises frames for the camera; the Monitor itself is not safe for
// concurrent use.
type session struct {
	mu          sync.Mutex
	monitor     *belt.Monitor
	last        *belt.Result
	lastMessage map[string]string
	updatedAt   time.Time
}

func (s *conveyorService) newSession(cameraID string, cfg belt.Config) (*session, error) {
	monitor, err := belt.NewMonitor(cfg,
		belt.WithBackend(s.backend),
		belt.WithLogger(s.log.WithField("camera_id", cameraID)),
		belt.WithClock(s.now),
	)
	if err != nil {
		return nil, response.Wrap(http.StatusBadRequest, err, conveyor.ErrInvalidConfig.Error())
	}
	return &session{
		monitor:     monitor,
		lastMessage: make(map[string]string),
		updatedAt:   s.now(),
	}, nil
}

func (s *conveyorService) lookup(cameraID string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[cameraID]
	return sess, ok
}

func (s *conveyorService) session(cameraID string) (*session, error) {
	if cameraID == "" {
		return nil, conveyor.ErrInvalidCameraID
	}
	if sess, ok := s.lookup(cameraID); ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[cameraID]; ok {
		return sess, nil
	}

	sess, err := s.newSession(cameraID, s.defaults)
	if err != nil {
		return nil, err
	}
	s.sessions[cameraID] = sess
	s.metrics.ActiveCameras.Add(1)

	s.log.WithFields(logrus.Fields{
		"camera_id":  cameraID,
		"monitor_id": sess.monitor.ID(),
	}).Info("Started monitoring camera")

	return sess, nil
}

func (s *conveyorService) Config(cameraID string) belt.Config {
	if sess, ok := s.lookup(cameraID); ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.monitor.Config()
	}
	return s.defaults
}
