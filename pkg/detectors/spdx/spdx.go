// Package spdx detects SPDX JSON documents as components of their own.
package spdx

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ID is the detector id.
const ID = "spdx"

var supported = []string{"SPDX-2.2", "SPDX-2.3"}

// Detector records each SPDX 2.x document found, identified by its name,
// SPDX version and the SHA-1 of the file. The packages the document lists
// are not recorded.
type Detector struct {
	detector.Base
	log *log.Logger
}

// New returns the SPDX document detector.
func New(env detector.Env) detector.Detector {
	return &Detector{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeSpdx},
			Patterns: []string{"*.spdx.json"},
			Cats:     []string{"spdx", "sbom"},
			Rev:      1,
			Gating:   detector.DefaultOff,
		},
		log: env.Log(),
	}
}

type document struct {
	SPDXVersion       string `json:"spdxVersion"`
	Name              string `json:"name"`
	DocumentNamespace string `json:"documentNamespace"`
}

func (d *Detector) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	data, err := io.ReadAll(s.Reader())
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		d.log.Warn("unparsable SPDX document", "detector", ID, "file", s.Location(), "err", err)
		return nil
	}
	if !isSupported(doc.SPDXVersion) {
		d.log.Warn("unsupported SPDX version", "detector", ID, "file", s.Location(), "version", doc.SPDXVersion)
		return nil
	}
	name := doc.Name
	if name == "" {
		name = doc.DocumentNamespace
	}
	if name == "" {
		d.log.Warn("SPDX document has no name", "detector", ID, "file", s.Location())
		return nil
	}

	sum := sha1.Sum(data)
	hash := hex.EncodeToString(sum[:])
	c := component.New(component.Spdx(name, doc.SPDXVersion, hash))
	c.FileHash = hash
	return rec.RegisterUsage(c, recorder.Explicit())
}

func isSupported(version string) bool {
	for _, v := range supported {
		if strings.EqualFold(v, version) {
			return true
		}
	}
	return false
}
