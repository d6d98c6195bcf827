package table

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/binstall/internal/domain/release"
)

// Format is a release table encoding.
type Format string

// Supported encodings.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Repository provides the release table for an installation.
type Repository interface {
	Load(ctx context.Context) (*release.Table, error)
}

// FileRepository reads a release table from a file.
type FileRepository struct {
	// path is the filesystem location of the table.
	path string
}

// filePermissions is used when writing tables.
const filePermissions = 0o644

// ErrNotFound is returned when the table file does not exist.
var ErrNotFound = errors.New("release table not found")

// document is the serialized form of a release table.
type document struct {
	Name       string     `yaml:"name" toml:"name" validate:"required"`
	Version    string     `yaml:"version" toml:"version" validate:"required"`
	License    string     `yaml:"license,omitempty" toml:"license,omitempty"`
	Binary     string     `yaml:"binary,omitempty" toml:"binary,omitempty" validate:"omitempty,excludesall=/\\"`
	SigningKey string     `yaml:"signing_key,omitempty" toml:"signing_key,omitempty"`
	Artifacts  []artifact `yaml:"artifacts" toml:"artifacts" validate:"required,min=1,dive"`
}

// artifact is the serialized form of one table entry.
type artifact struct {
	OS           string `yaml:"os" toml:"os" validate:"required"`
	Arch         string `yaml:"arch" toml:"arch" validate:"required"`
	URL          string `yaml:"url" toml:"url" validate:"required,url"`
	SHA256       string `yaml:"sha256" toml:"sha256" validate:"required,len=64,hexadecimal"`
	SignatureURL string `yaml:"signature_url,omitempty" toml:"signature_url,omitempty" validate:"omitempty,url"`
}

// NewFileRepository creates a repository reading the table at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the table location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads, decodes and validates the table.
func (r *FileRepository) Load(_ context.Context) (*release.Table, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", r.path, ErrNotFound)
		}

		return nil, fmt.Errorf("read release table: %w", err)
	}

	return Decode(contents, FormatFromPath(r.path))
}

// Save writes tbl to the repository path in the format implied by its extension.
func (r *FileRepository) Save(_ context.Context, tbl *release.Table) error {
	contents, err := Encode(tbl, FormatFromPath(r.path))
	if err != nil {
		return err
	}

	if err = os.WriteFile(r.path, contents, filePermissions); err != nil {
		return fmt.Errorf("write release table: %w", err)
	}

	return nil
}

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}

	return FormatYAML
}

// Decode parses a table document. Unknown fields are rejected.
func Decode(data []byte, format Format) (*release.Table, error) {
	var doc document

	switch format {
	case FormatTOML:
		if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&doc); err != nil {
			return nil, &release.TableError{Entry: -1, Err: fmt.Errorf("decode toml: %w", err)}
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)

		if err := decoder.Decode(&doc); err != nil {
			return nil, &release.TableError{Entry: -1, Err: fmt.Errorf("decode yaml: %w", err)}
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(doc); err != nil {
		return nil, &release.TableError{Entry: -1, Err: err}
	}

	return doc.toTable()
}

// Encode serializes tbl with artifacts ordered by platform.
func Encode(tbl *release.Table, format Format) ([]byte, error) {
	doc := fromTable(tbl)

	switch format {
	case FormatTOML:
		contents, err := toml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}

		return contents, nil
	default:
		contents, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}

		return contents, nil
	}
}

func fromTable(tbl *release.Table) *document {
	rel := tbl.Release()
	doc := &document{
		Name:       rel.Name,
		Version:    rel.Version,
		License:    rel.License,
		SigningKey: rel.SigningKey,
		Artifacts:  make([]artifact, 0, tbl.Len()),
	}

	if rel.Binary != rel.Name {
		doc.Binary = rel.Binary
	}

	for _, key := range tbl.Keys() {
		entry, _ := tbl.Lookup(key)

		doc.Artifacts = append(doc.Artifacts, artifact{
			OS:           string(key.OS),
			Arch:         string(key.Arch),
			URL:          entry.URL,
			SHA256:       entry.SHA256,
			SignatureURL: entry.SignatureURL,
		})
	}

	return doc
}

// toTable converts the document into a frozen release table.
func (d *document) toTable() (*release.Table, error) {
	entries := make([]release.Entry, 0, len(d.Artifacts))
	for _, a := range d.Artifacts {
		entries = append(entries, release.Entry{
			Platform:     release.PlatformKey{OS: release.OS(a.OS), Arch: release.Arch(a.Arch)},
			URL:          a.URL,
			SHA256:       a.SHA256,
			SignatureURL: a.SignatureURL,
		})
	}

	descriptor := release.Descriptor{
		Name:       d.Name,
		Version:    d.Version,
		License:    d.License,
		Binary:     d.Binary,
		SigningKey: d.SigningKey,
	}

	return release.NewTable(descriptor, entries)
}
