package belt

// Calibration converts between pixels and millimetres. The factor is fixed
// by the first complete edge pair and kept for the Monitor's lifetime, on
// the assumption that the camera does not move.
type Calibration struct {
	beltWidthMM  float64
	nominalSpeed float64
	pixelsPerMM  float64
	set          bool
}

func NewCalibration(beltWidthMM, nominalSpeedMPS float64) *Calibration {
	return &Calibration{
		beltWidthMM:  beltWidthMM,
		nominalSpeed: nominalSpeedMPS,
	}
}

func (c *Calibration) BeltWidthMM() float64 {
	return c.beltWidthMM
}

func (c *Calibration) NominalSpeedMPS() float64 {
	return c.nominalSpeed
}

func (c *Calibration) IsSet() bool {
	return c.set
}

// Observe records the measured edge span in pixels. It only has an effect
// the first time it sees a positive span and reports whether it did.
func (c *Calibration) Observe(spanPx float64) bool {
	if c.set || spanPx <= 0 || c.beltWidthMM <= 0 {
		return false
	}
	c.pixelsPerMM = spanPx / c.beltWidthMM
	c.set = true
	return true
}

func (c *Calibration) PixelsPerMM() (float64, error) {
	if !c.set {
		return 0, ErrCalibrationUnavailable
	}
	return c.pixelsPerMM, nil
}

func (c *Calibration) ToMM(px float64) (float64, error) {
	ppm, err := c.PixelsPerMM()
	if err != nil {
		return 0, err
	}
	return px / ppm, nil
}

// PixelsPerMetre is used for speed conversion.
func (c *Calibration) PixelsPerMetre() (float64, error) {
	ppm, err := c.PixelsPerMM()
	if err != nil {
		return 0, err
	}
	return ppm * 1000, nil
}
