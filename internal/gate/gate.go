package gate

import (
	"io/fs"
	"os"
	"path/filepath"

	"mediaflow/internal/config"
	"mediaflow/internal/pipeline"
)

// Layout maps stages to artifact locations.
type Layout struct {
	WorkDir   string
	OutputDir string
}

// LayoutFromConfig builds a layout from the paths section.
func LayoutFromConfig(cfg *config.Config) Layout {
	return Layout{WorkDir: cfg.Paths.WorkDir, OutputDir: cfg.Paths.OutputDir}
}

// Path returns the artifact path for key at stage.
func (l Layout) Path(key string, stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageFetch:
		return filepath.Join(l.WorkDir, "raw", key)
	case pipeline.StageConvert:
		return filepath.Join(l.WorkDir, "audio", key+".wav")
	case pipeline.StageTranscribe:
		return filepath.Join(l.WorkDir, "transcripts", key+".json")
	case pipeline.StagePostProcess:
		return filepath.Join(l.WorkDir, "processed", key+".json")
	case pipeline.StagePersist:
		return filepath.Join(l.OutputDir, key+".json")
	default:
		return ""
	}
}

// Dirs lists every directory the layout writes into.
func (l Layout) Dirs() []string {
	return []string{
		filepath.Join(l.WorkDir, "raw"),
		filepath.Join(l.WorkDir, "audio"),
		filepath.Join(l.WorkDir, "transcripts"),
		filepath.Join(l.WorkDir, "processed"),
		l.OutputDir,
	}
}

// EnsureDirs creates every layout directory.
func (l Layout) EnsureDirs() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// StatFunc probes a path.
type StatFunc func(path string) (fs.FileInfo, error)

// Gate checks whether stage outputs already exist.
type Gate struct {
	layout Layout
	stat   StatFunc
}

// New builds a gate over layout backed by os.Stat.
func New(layout Layout) *Gate {
	return &Gate{layout: layout, stat: os.Stat}
}

// WithStat replaces the filesystem probe.
func (g *Gate) WithStat(stat StatFunc) *Gate {
	cp := *g
	if stat != nil {
		cp.stat = stat
	}
	return &cp
}

// Layout returns the gate's layout.
func (g *Gate) Layout() Layout { return g.layout }

// Path returns the expected artifact path for key at stage.
func (g *Gate) Path(key string, stage pipeline.Stage) string {
	return g.layout.Path(key, stage)
}

// CheckStageOutput reports whether the artifact for key at stage exists, and
// its path either way. Empty files count as missing so that a crash
// mid-write never looks complete.
func (g *Gate) CheckStageOutput(key string, stage pipeline.Stage) (bool, string) {
	path := g.layout.Path(key, stage)
	if path == "" || key == "" {
		return false, path
	}
	info, err := g.stat(path)
	if err != nil {
		return false, path
	}
	if info.IsDir() || info.Size() == 0 {
		return false, path
	}
	return true, path
}

// Furthest returns the latest stage whose artifact exists for key.
func (g *Gate) Furthest(key string) (pipeline.Stage, bool) {
	stages := pipeline.Stages()
	for i := len(stages) - 1; i >= 0; i-- {
		if ok, _ := g.CheckStageOutput(key, stages[i]); ok {
			return stages[i], true
		}
	}
	return 0, false
}
