// Package library locates and loads the compiled ferrum kernel library.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/shaders"
	"go.uber.org/zap"
)

const (
	// Name is the conventional base name of the kernel library file.
	Name = "ferrum"

	// DefaultEnvVar names the environment variable holding a library directory.
	DefaultEnvVar = "FERRUM_LIB"

	// DefaultDir is searched when neither a path nor the environment variable is set.
	DefaultDir = "./lib"
)

// ErrNotFound is returned when no search step produced a library file.
var ErrNotFound = errors.New("failed to find library")

// SourceKind records which search step produced the library.
type SourceKind string

const (
	SourceEmbedded  SourceKind = "embedded"
	SourceBundle    SourceKind = "bundle"
	SourceFile      SourceKind = "file"
	SourceDirectory SourceKind = "directory"
	SourceEnv       SourceKind = "env"
	SourceDefault   SourceKind = "default"
)

// Source describes where a library was loaded from.
type Source struct {
	Kind     SourceKind
	Location string
}

func (s Source) String() string {
	if s.Location == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s (%s)", s.Kind, s.Location)
}

// Options controls library resolution. The zero value searches the embedded
// blob, the application bundle, $FERRUM_LIB and ./lib.
type Options struct {
	// Path is an explicit library file or a directory containing one. When
	// set, the embedded blob, the environment variable and the default
	// directory are not consulted.
	Path       string
	EnvVar     string
	DefaultDir string

	Getenv     func(string) string
	Executable func() (string, error)
	Embedded   func(format string) []byte

	Logger *zap.Logger
}

func (o *Options) setDefaults() {
	if o.EnvVar == "" {
		o.EnvVar = DefaultEnvVar
	}
	if o.DefaultDir == "" {
		o.DefaultDir = DefaultDir
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	if o.Executable == nil {
		o.Executable = os.Executable
	}
	if o.Embedded == nil {
		o.Embedded = shaders.Embedded
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Load produces the kernel library for dev. The embedded blob is tried first
// when no path is given; otherwise a file is resolved with Resolve and loaded
// from disk.
func Load(dev gpu.Device, opts Options) (gpu.Library, Source, error) {
	opts.setDefaults()
	logger := opts.Logger.Named("library")
	format := dev.LibraryFormat()

	if opts.Path == "" {
		if data := opts.Embedded(format); len(data) > 0 {
			lib, err := dev.NewLibraryWithData(data)
			if err == nil {
				return lib, Source{Kind: SourceEmbedded}, nil
			}
			logger.Warn("Embedded library rejected, searching the filesystem", zap.Error(err))
		}
	}

	src, err := Resolve(format, opts)
	if err != nil {
		return nil, Source{}, err
	}
	logger.Debug("Found library", zap.Stringer("source", src))

	lib, err := dev.NewLibraryWithFile(src.Location)
	if err != nil {
		return nil, src, fmt.Errorf("loading library from %s: %w", src.Location, err)
	}
	return lib, src, nil
}

// Resolve finds a library file with the given extension, first hit wins:
// the application bundle, the explicit path as a file, the explicit path as
// a directory, then (only without an explicit path) the environment
// variable directory or the default directory.
func Resolve(format string, opts Options) (Source, error) {
	opts.setDefaults()
	fileName := Name + "." + format

	resource := fileName
	if opts.Path != "" {
		resource = filepath.Base(opts.Path)
		if filepath.Ext(resource) == "" {
			resource += "." + format
		}
	}
	if p, ok := bundleResource(opts.Executable, resource); ok {
		return Source{Kind: SourceBundle, Location: p}, nil
	}

	if opts.Path != "" {
		info, err := os.Stat(opts.Path)
		if err != nil {
			return Source{}, fmt.Errorf("%w at %s: %w", ErrNotFound, opts.Path, err)
		}
		if !info.IsDir() {
			return Source{Kind: SourceFile, Location: opts.Path}, nil
		}
		p := filepath.Join(opts.Path, fileName)
		if isFile(p) {
			return Source{Kind: SourceDirectory, Location: p}, nil
		}
		return Source{}, fmt.Errorf("%w in directory %s", ErrNotFound, opts.Path)
	}

	kind, dir := SourceEnv, opts.Getenv(opts.EnvVar)
	if dir == "" {
		kind, dir = SourceDefault, opts.DefaultDir
	}
	p := filepath.Join(dir, fileName)
	if isFile(p) {
		return Source{Kind: kind, Location: p}, nil
	}
	return Source{}, fmt.Errorf("%w at %s", ErrNotFound, p)
}

// bundleResource looks for resource in the Resources directory of the macOS
// application bundle the executable runs from.
func bundleResource(executable func() (string, error), resource string) (string, bool) {
	exe, err := executable()
	if err != nil {
		return "", false
	}
	macOS := filepath.Dir(exe)
	contents := filepath.Dir(macOS)
	if filepath.Base(macOS) != "MacOS" || filepath.Base(contents) != "Contents" ||
		!strings.HasSuffix(filepath.Dir(contents), ".app") {
		return "", false
	}
	p := filepath.Join(contents, "Resources", resource)
	return p, isFile(p)
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
