package conveyorHandler

import (
	"ConveyorVision/internal/api/conveyor"
	conveyorService "ConveyorVision/internal/api/conveyor/service"
	"ConveyorVision/internal/middleware"
	contextPkg "ConveyorVision/pkg/context"
	"ConveyorVision/pkg/log"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// handleStream reads binary frames and hands them to a single analysis
// worker through the stream mailbox. When analysis falls behind, older
// frames are dropped instead of queued.
func (h *ConveyorHandler) handleStream(c *websocket.Conn) {
	cameraID := c.Params("camera_id")
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)

	logger := h.log.WithFields(log.Fields{
		"request_id": requestID,
		"camera_id":  cameraID,
	})
	logger.Info("Belt stream client connected")
	defer logger.Info("Belt stream client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			logger.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	stream := h.conveyorService.OpenStream(cameraID)
	defer stream.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.streamWorker(c, stream, requestID, logger)
	}()

	maxReadTimeout := 60 * time.Second

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Belt stream error: %v", err)
			} else {
				logger.Info("Belt stream connection closed")
			}
			break
		}

		if messageType == websocket.BinaryMessage {
			stream.Offer(message, time.Now())
		} else {
			logger.Warnf("Received unexpected message type: %d", messageType)
		}
	}

	stream.Close()
	<-done
}

func (h *ConveyorHandler) streamWorker(c *websocket.Conn, stream *conveyorService.Stream, requestID string, logger *logrus.Entry) {
	ctx := contextPkg.WithCameraID(contextPkg.WithRequestID(context.Background(), requestID), stream.CameraID)

	for {
		frame, dropped, ok := stream.Next()
		if !ok {
			return
		}

		msg := conveyor.StreamMessage{Dropped: dropped}
		result, err := h.conveyorService.Analyze(ctx, stream.CameraID, frame.Data, frame.CapturedAt)
		if err != nil {
			logger.Warnf("Error analysing stream frame: %v", err)
			msg.Error = err.Error()
		} else {
			msg.Result = result
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			logger.Errorf("Error setting write deadline: %v", err)
			c.Close()
			return
		}

		if err := c.WriteJSON(msg); err != nil {
			logger.Errorf("Error writing JSON response: %v", err)
			c.Close()
			return
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			logger.Errorf("Error resetting write deadline: %v", err)
			c.Close()
			return
		}
	}
}
