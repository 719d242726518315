package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go_superres/tiling"
)

// Field keys shared by pipeline log entries.
const (
	KeyImage    = "image"
	KeyOutput   = "output"
	KeyBatchID  = "batch_id"
	KeyTile     = "tile"
	KeyTileX    = "tile_x"
	KeyTileY    = "tile_y"
	KeyTileSize = "tile_size"
	KeySeams    = "seams"
	KeyBackend  = "backend"
	KeyRefine   = "refine"
)

// TileFields returns the fields describing one tile placement.
func TileFields(spec tiling.TileSpec) []zap.Field {
	return []zap.Field{
		zap.String(KeyTile, spec.Position.String()),
		zap.Int(KeyTileX, spec.X),
		zap.Int(KeyTileY, spec.Y),
		zap.Int(KeyTileSize, spec.Size),
		zap.Int(KeySeams, spec.Seams.Count()),
	}
}

// JobFields returns the fields identifying a single image within a batch.
func JobFields(batchID, image string) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if batchID != "" {
		fields = append(fields, zap.String(KeyBatchID, batchID))
	}
	return append(fields, zap.String(KeyImage, image))
}

// RefineMetrics captures one refinement call.
// It implements zapcore.ObjectMarshaler so it logs as a nested object:
//
//	logger.Info("tile refined", zap.Object(KeyRefine, metrics))
type RefineMetrics struct {
	Backend  string
	Position string
	Steps    int
	Strength float64
	Seed     uint64
	Duration time.Duration
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (m RefineMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("backend", m.Backend)
	enc.AddString("position", m.Position)
	enc.AddInt("steps", m.Steps)
	enc.AddFloat64("strength", m.Strength)
	enc.AddUint64("seed", m.Seed)
	enc.AddDuration("duration", m.Duration)
	if m.Steps > 0 && m.Duration > 0 {
		enc.AddFloat64("steps_per_second", float64(m.Steps)/m.Duration.Seconds())
	}
	return nil
}

// Field returns the metrics as a zap.Object field.
func (m RefineMetrics) Field() zap.Field {
	return zap.Object(KeyRefine, m)
}
