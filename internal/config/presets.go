package config

var Presets = map[string]*Config{
	"small": {
		Dt: 0.01, Steps: 120,
		Scene: SceneConfig{
			Actors: 32, Radius: 0.5, Spread: 20.0,
			Gravity: [3]float64{0, -9.81, 0},
			Damping: DefaultDamping, SleepSpeed: DefaultSleepSpeed,
			ChunkSize: 8,
		},
	},
	"standard": {
		Dt: 0.01, Steps: 300,
		Scene: SceneConfig{
			Actors: 256, Radius: 0.5, Spread: 50.0,
			Gravity: [3]float64{0, -9.81, 0},
			Damping: DefaultDamping, SleepSpeed: DefaultSleepSpeed,
			ChunkSize: DefaultChunkSize,
		},
	},
	"stress": {
		Dt: 0.005, Steps: 600,
		Scene: SceneConfig{
			Actors: 2048, Radius: 0.25, Spread: 200.0,
			Gravity: [3]float64{0, -9.81, 0},
			Damping: DefaultDamping, SleepSpeed: DefaultSleepSpeed,
			ChunkSize: 128,
		},
	},
}

func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
