package particle

// Per-frame model coefficients
const (
	AccelCoupling  = 0.1  // velocity gained per unit of acceleration
	DriftAmplitude = 0.1  // jitter drawn from [-DriftAmplitude, DriftAmplitude]
	GammaCoupling  = 0.01 // rotation speed gained per degree of gamma
	Friction       = 0.95 // multiplicative decay of velocity and rotation speed
)

// Spawn ranges, upper bounds exclusive
const (
	SizeMin      = 4.0
	SizeMax      = 12.0
	BaseRGMin    = 100.0
	BaseRGMax    = 200.0
	BaseAlphaMin = 150.0
	BaseAlphaMax = 200.0
	RotationMax  = 360.0
)

// Default field shape
const (
	DefaultCount  = 100
	DefaultWidth  = 340.0
	DefaultHeight = 340.0
)
