//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package result

// Key is the composite identity of one (model, group, sample) evaluation
// unit. Two attempts denote the same unit of work exactly when all five
// fields are equal, so Key is used directly as a map key — no derived hash.
type Key struct {
	Model           string
	Group           string
	Image           string
	Label           string
	GroundTruthPath string
}

// MakeKey builds the identity key for an evaluation unit. A missing sample
// label is carried as the empty string, so keys built from live
// configuration and keys built from persisted rows compare equal.
func MakeKey(model, group, image, label, groundTruthPath string) Key {
	return Key{
		Model:           model,
		Group:           group,
		Image:           image,
		Label:           label,
		GroundTruthPath: groundTruthPath,
	}
}

// Key derives the identity key of a row. The second return is false for
// rows that lack one of the required fields; such rows are passthrough and
// never participate in deduplication.
func (r *Row) Key() (Key, bool) {
	if r.Model == "" || r.Group == "" || r.Image == "" || r.GroundTruthFile == "" {
		return Key{}, false
	}
	return MakeKey(r.Model, r.Group, r.Image, r.Label, r.GroundTruthFile), true
}
