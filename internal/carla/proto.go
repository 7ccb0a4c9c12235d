package carla

import (
	"fmt"
	"math"

	"github.com/carlaviz/startpositions/pkg/core"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the CARLA 0.8 server protocol messages we use.
const (
	fieldRequestIniFile protowire.Number = 1

	fieldScenePlayerStartSpots protowire.Number = 1
	fieldSceneMapName          protowire.Number = 3

	fieldTransformLocation    protowire.Number = 1
	fieldTransformOrientation protowire.Number = 2
	fieldTransformRotation    protowire.Number = 3

	fieldVectorX protowire.Number = 1
	fieldVectorY protowire.Number = 2
	fieldVectorZ protowire.Number = 3

	fieldRotationPitch protowire.Number = 1
	fieldRotationYaw   protowire.Number = 2
	fieldRotationRoll  protowire.Number = 3
)

// encodeRequestNewEpisode builds a RequestNewEpisode message.
func encodeRequestNewEpisode(iniFile string) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRequestIniFile, protowire.BytesType)
	b = protowire.AppendString(b, iniFile)
	return b
}

// fieldFunc handles one field. It returns the bytes consumed from b, or -1
// to let walkFields skip an unknown field.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walkFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: field %d has wire type %d, want bytes", ErrMalformedMessage, num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeFloat(num protowire.Number, typ protowire.Type, b []byte) (float64, int, error) {
	if typ != protowire.Fixed32Type {
		return 0, 0, fmt.Errorf("%w: field %d has wire type %d, want fixed32", ErrMalformedMessage, num, typ)
	}
	v, n := protowire.ConsumeFixed32(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, num, protowire.ParseError(n))
	}
	return float64(math.Float32frombits(v)), n, nil
}

// decodeSceneDescription parses a SceneDescription message. Sensor
// definitions are skipped.
func decodeSceneDescription(b []byte) (*core.Scene, error) {
	scene := &core.Scene{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldScenePlayerStartSpots:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			spot, err := decodeTransform(v)
			if err != nil {
				return 0, fmt.Errorf("player start spot %d: %w", len(scene.SpawnSpots), err)
			}
			scene.SpawnSpots = append(scene.SpawnSpots, spot)
			return n, nil
		case fieldSceneMapName:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			scene.MapName = string(v)
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	return scene, nil
}

func decodeTransform(b []byte) (core.SpawnSpot, error) {
	var spot core.SpawnSpot
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldTransformLocation, fieldTransformOrientation:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			vec, err := decodeVector3D(v)
			if err != nil {
				return 0, err
			}
			if num == fieldTransformLocation {
				spot.Location = vec
			} else {
				spot.Orientation = vec
			}
			return n, nil
		case fieldTransformRotation:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			rot, err := decodeRotation3D(v)
			if err != nil {
				return 0, err
			}
			spot.Rotation = rot
			return n, nil
		}
		return -1, nil
	})
	return spot, err
}

func decodeVector3D(b []byte) (core.Position3D, error) {
	var p core.Position3D
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var dst *float64
		switch num {
		case fieldVectorX:
			dst = &p.X
		case fieldVectorY:
			dst = &p.Y
		case fieldVectorZ:
			dst = &p.Z
		default:
			return -1, nil
		}
		v, n, err := consumeFloat(num, typ, b)
		if err != nil {
			return 0, err
		}
		*dst = v
		return n, nil
	})
	return p, err
}

func decodeRotation3D(b []byte) (core.Rotation3D, error) {
	var r core.Rotation3D
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var dst *float64
		switch num {
		case fieldRotationPitch:
			dst = &r.Pitch
		case fieldRotationYaw:
			dst = &r.Yaw
		case fieldRotationRoll:
			dst = &r.Roll
		default:
			return -1, nil
		}
		v, n, err := consumeFloat(num, typ, b)
		if err != nil {
			return 0, err
		}
		*dst = v
		return n, nil
	})
	return r, err
}
