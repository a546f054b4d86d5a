package lightgraph

// Config sizes the fixed pools and global shadow settings. Pools never grow;
// exhaustion is logged and the entity simply does not participate this frame.
type Config struct {
	MaxLights       int
	MaxInteractions int
	MaxShadowMaps   int
	MaxAreas        int

	// ShadowResolution is the LOD-0 shadow map edge in texels. Per-light maps
	// are ShadowResolution >> LOD.
	ShadowResolution int

	Debug bool
}

func DefaultConfig() Config {
	return Config{
		MaxLights:        256,
		MaxInteractions:  4096,
		MaxShadowMaps:    64,
		MaxAreas:         64,
		ShadowResolution: 2048,
	}
}
