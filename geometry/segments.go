package geometry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrMalformedLine     = errors.New("malformed segment line")
	ErrEmptyTable        = errors.New("segment table is empty")
	ErrNoAxisAlignedRoad = errors.New("no axis-aligned road segment to start from")
)

// Segment is a line segment on the ground plane (Z is always 0)
type Segment struct {
	A r3.Vec
	B r3.Vec
}

// Transform maps source coordinates into vehicle-local ones: (p - Origin) / Scale on X and Y
type Transform struct {
	Origin r3.Vec
	Scale  float64
}

var (
	// UnrealTransform converts the map editor coordinates to the frame the car starts in
	UnrealTransform = Transform{Origin: r3.Vec{X: 12961.722656, Y: 6660.329102}, Scale: 100}
	Identity        = Transform{Scale: 1}
)

func (t Transform) applyPoint(p r3.Vec) r3.Vec {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	return r3.Vec{
		X: (p.X - t.Origin.X) / scale,
		Y: (p.Y - t.Origin.Y) / scale,
	}
}

// Apply returns a new transformed segment
func (t Transform) Apply(s Segment) Segment {
	return Segment{A: t.applyPoint(s.A), B: t.applyPoint(s.B)}
}

// Tables holds the immutable road and reward segments
type Tables struct {
	Road   []Segment
	Reward []Segment
}

// LoadTables reads both segment files. Any malformed line or empty table fails the whole load.
func LoadTables(roadPath, rewardPath string, roadT, rewardT Transform) (*Tables, error) {
	road, err := loadFile(roadPath, roadT, parseRoadLine)
	if err != nil {
		return nil, err
	}
	reward, err := loadFile(rewardPath, rewardT, parseRewardLine)
	if err != nil {
		return nil, err
	}
	return &Tables{Road: road, Reward: reward}, nil
}

func loadFile(path string, t Transform, parse lineParser) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	segs, err := readSegments(f, t, parse)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return segs, nil
}

// LoadRoadSegments parses lines of the form "x1,y1\tx2,y2"
func LoadRoadSegments(r io.Reader, t Transform) ([]Segment, error) {
	return readSegments(r, t, parseRoadLine)
}

// LoadRewardSegments parses lines of the form "x1\ty1\tx2\ty2"
func LoadRewardSegments(r io.Reader, t Transform) ([]Segment, error) {
	return readSegments(r, t, parseRewardLine)
}

type lineParser func(string) (Segment, error)

func readSegments(r io.Reader, t Transform, parse lineParser) ([]Segment, error) {
	segments := make([]Segment, 0)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s, err := parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		segments = append(segments, t.Apply(s))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrEmptyTable
	}
	return segments, nil
}

func parseRoadLine(line string) (Segment, error) {
	points := strings.Split(line, "\t")
	if len(points) != 2 {
		return Segment{}, fmt.Errorf("%w: expected 2 tab separated points, got %q", ErrMalformedLine, line)
	}
	a, err := parsePoint(strings.Split(points[0], ","))
	if err != nil {
		return Segment{}, err
	}
	b, err := parsePoint(strings.Split(points[1], ","))
	if err != nil {
		return Segment{}, err
	}
	return Segment{A: a, B: b}, nil
}

func parseRewardLine(line string) (Segment, error) {
	values := strings.Split(line, "\t")
	if len(values) != 4 {
		return Segment{}, fmt.Errorf("%w: expected 4 tab separated values, got %q", ErrMalformedLine, line)
	}
	a, err := parsePoint(values[:2])
	if err != nil {
		return Segment{}, err
	}
	b, err := parsePoint(values[2:])
	if err != nil {
		return Segment{}, err
	}
	return Segment{A: a, B: b}, nil
}

func parsePoint(fields []string) (r3.Vec, error) {
	if len(fields) != 2 {
		return r3.Vec{}, fmt.Errorf("%w: expected x,y got %v", ErrMalformedLine, fields)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return r3.Vec{X: x, Y: y}, nil
}
