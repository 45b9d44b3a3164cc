package conveyorRepository

import "fmt"

func alertsKey(cameraID string) string {
	return fmt.Sprintf("alerts:%s", cameraID)
}

func logsKey(cameraID string) string {
	return fmt.Sprintf("detections:%s", cameraID)
}
