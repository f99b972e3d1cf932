package squash

import "github.com/mirajehossain/migsquash/internal/fsutil"

// Absorbed is a source migration folded into the squashed one.
type Absorbed struct {
	fsutil.Migration
	Checksum  string
	UpLines   int
	DownLines int
}

// File is a generated file and its content fingerprint.
type File struct {
	Path     string
	Checksum string
}

// Result is the outcome of a squash run. Nothing in this package logs; callers
// report the result.
type Result struct {
	Dir               string
	TargetID          string
	NewID             string
	PrepID            string
	Absorbed          []Absorbed
	Written           []File
	Removed           []string
	Warnings          []string
	TimestampMismatch bool
	DryRun            bool
}
