package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Package-relative descriptor locations, in probe order.
var unetDescriptorPaths = []string{
	filepath.Join("Unet.mlmodelc", "metadata.json"),
	filepath.Join("UnetChunk1.mlmodelc", "metadata.json"),
	filepath.Join("ControlledUnet.mlmodelc", "metadata.json"),
}

var (
	encoderDescriptorPath = filepath.Join("VAEEncoder.mlmodelc", "metadata.json")
	controlledUnetDir     = "ControlledUnet.mlmodelc"
)

const splitEinsumOp = "Ios16.einsum"

var largeVariantInputs = []string{"time_ids", "text_embeds"}

var errNoDescriptor = errors.New("no unet metadata descriptor")

// inputSpec is one declared model input.
type inputSpec struct {
	Name  string `json:"name"`
	Shape string `json:"shape"`
}

// descriptor is the subset of a compiled package's metadata.json we read.
type descriptor struct {
	Histogram   map[string]int `json:"mlProgramOperationTypeHistogram"`
	InputSchema []inputSpec    `json:"inputSchema"`
}

// findDescriptor returns the first U-Net descriptor present in the package.
func findDescriptor(pkg string) (string, error) {
	for _, rel := range unetDescriptorPaths {
		p := filepath.Join(pkg, rel)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", errNoDescriptor
}

// readDescriptor parses a metadata file. Compiled packages store a JSON array
// with one object; a bare object is accepted too.
func readDescriptor(path string) (descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return descriptor{}, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return descriptor{}, fmt.Errorf("%s: empty descriptor", path)
	}
	if b[0] == '[' {
		var list []descriptor
		if err := json.Unmarshal(b, &list); err != nil {
			return descriptor{}, fmt.Errorf("%s: %w", path, err)
		}
		if len(list) == 0 {
			return descriptor{}, fmt.Errorf("%s: empty descriptor list", path)
		}
		return list[0], nil
	}
	var d descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return descriptor{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func (d descriptor) attention() AttentionVariant {
	if d.Histogram == nil {
		return ""
	}
	if _, ok := d.Histogram[splitEinsumOp]; ok {
		return AttentionSplitEinsum
	}
	return AttentionOriginal
}

func (d descriptor) hasInput(name string) bool {
	for _, in := range d.InputSchema {
		if in.Name == name {
			return true
		}
	}
	return false
}

func (d descriptor) isLargeVariant() bool {
	for _, name := range largeVariantInputs {
		if !d.hasInput(name) {
			return false
		}
	}
	return true
}

// parseShape turns "[1, 3, 768, 512]" into its integer dimensions.
func parseShape(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("shape %q: not a bracketed list", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, fmt.Errorf("shape %q: empty", s)
	}
	parts := strings.Split(body, ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", s, err)
		}
		dims = append(dims, n)
	}
	return dims, nil
}

// ResolutionFromShape recovers width and height from an [n, c, h, w] shape string.
func ResolutionFromShape(shape string) (Size, error) {
	dims, err := parseShape(shape)
	if err != nil {
		return Size{}, err
	}
	if len(dims) < 4 {
		return Size{}, fmt.Errorf("shape %q: want 4 dimensions, got %d", shape, len(dims))
	}
	return Size{Width: dims[3], Height: dims[2]}, nil
}

// probeResolution reads the image encoder descriptor. A missing encoder means
// no fixed resolution and is reported as (nil, nil).
func probeResolution(pkg string) (*Size, error) {
	p := filepath.Join(pkg, encoderDescriptorPath)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	d, err := readDescriptor(p)
	if err != nil {
		return nil, err
	}
	if len(d.InputSchema) == 0 {
		return nil, fmt.Errorf("%s: no inputs declared", p)
	}
	sz, err := ResolutionFromShape(d.InputSchema[0].Shape)
	if err != nil {
		return nil, err
	}
	return &sz, nil
}
