package curlingcam

import (
	"time"

	"github.com/brutella/hc/accessory"
	"github.com/brutella/hc/service"

	"github.com/johnpoole/glencoe-curling-camera-capture/pipeline"
)

// motionHold is how long the motion sensor stays on after a publication.
const motionHold = 10 * time.Second

// Camera exposes the published frames to HomeKit: snapshots come from the
// last published frame and the motion sensor fires when the scene changed.
type Camera struct {
	*accessory.Accessory
	StreamManagement *service.CameraRTPStreamManagement
	Motion           *service.MotionSensor

	clear *time.Timer
}

// NewCamera returns an IP camera accessory.
func NewCamera(info accessory.Info) *Camera {
	acc := Camera{}
	acc.Accessory = accessory.New(info, accessory.TypeIPCamera)

	acc.StreamManagement = service.NewCameraRTPStreamManagement()
	acc.AddService(acc.StreamManagement.Service)

	acc.Motion = service.NewMotionSensor()
	acc.AddService(acc.Motion.Service)

	return &acc
}

// Published implements pipeline.Observer. Forced captures are not motion.
func (c *Camera) Published(p pipeline.Publication) {
	if p.Reason == pipeline.ReasonForced {
		return
	}

	c.Motion.MotionDetected.SetValue(true)
	if c.clear != nil {
		c.clear.Stop()
	}
	c.clear = time.AfterFunc(motionHold, func() {
		c.Motion.MotionDetected.SetValue(false)
	})
}
