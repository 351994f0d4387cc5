package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	vec3d "github.com/flywave/go3d/float64/vec3"

	"github.com/flywave/go-kriging-gpu/worker"
)

// readSamples loads a CSV file of x,y,value rows (an optional header row is
// skipped) or a JSON job request.
func readSamples(path string) (*worker.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decodeRequest(f)
	case ".csv", ".txt":
		return decodeCSV(f)
	}
	return nil, fmt.Errorf("unsupported sample file %s", path)
}

func decodeRequest(r io.Reader) (*worker.Request, error) {
	req := &worker.Request{}
	if err := json.NewDecoder(r).Decode(req); err != nil {
		return nil, fmt.Errorf("error parsing request: %w", err)
	}
	return req, nil
}

func decodeCSV(r io.Reader) (*worker.Request, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = 3

	req := &worker.Request{}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		var v [3]float64
		for i, field := range rec {
			if v[i], err = strconv.ParseFloat(field, 64); err != nil {
				break
			}
		}
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		req.Xs = append(req.Xs, v[0])
		req.Ys = append(req.Ys, v[1])
		req.Data = append(req.Data, v[2])
	}
	return req, nil
}

func positions(req *worker.Request) []vec3d.T {
	pos := make([]vec3d.T, len(req.Data))
	for i := range pos {
		pos[i] = vec3d.T{req.Xs[i], req.Ys[i], req.Data[i]}
	}
	return pos
}
