package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ExportFormat specifies the output format for spec export
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures spec export behavior
type ExportOptions struct {
	// Format specifies the output format (yaml or json)
	Format ExportFormat

	// PrettyPrint enables indented output
	PrettyPrint bool

	// AddComments adds a YAML header comment (YAML only)
	AddComments bool
}

// DefaultExportOptions returns the default export options
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:      FormatYAML,
		PrettyPrint: true,
		AddComments: true,
	}
}

// ImportOptions configures spec import behavior
type ImportOptions struct {
	// GenerateNewID assigns a fresh ID to the imported spec
	GenerateNewID bool

	// SkipValidation bypasses Validate (for inspecting broken documents)
	SkipValidation bool
}

// DefaultImportOptions returns the default import options
func DefaultImportOptions() ImportOptions {
	return ImportOptions{GenerateNewID: true}
}

// Export serializes a spec to the specified format, stamping metadata.
func Export(spec *Spec, opts ExportOptions) ([]byte, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}

	// Work on a copy so the caller's document is untouched
	out := *spec
	out.Metadata.UpdatedAt = time.Now()
	if out.Metadata.ID == "" {
		out.Metadata.ID = uuid.New().String()
	}
	if out.Metadata.SchemaVersion == "" {
		out.Metadata.SchemaVersion = SchemaVersion
	}
	if out.Metadata.Source == "" {
		out.Metadata.Source = "export"
	}

	switch opts.Format {
	case FormatYAML:
		return exportToYAML(&out, opts)
	case FormatJSON:
		return exportToJSON(&out, opts)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}
}

func exportToYAML(spec *Spec, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer

	if opts.AddComments {
		buf.WriteString("# Strategy Parameter Spec\n")
		buf.WriteString(fmt.Sprintf("# Schema Version: %s\n", spec.Metadata.SchemaVersion))
		buf.WriteString(fmt.Sprintf("# Exported: %s\n", time.Now().Format(time.RFC3339)))
		buf.WriteString("\n")
	}

	encoder := yaml.NewEncoder(&buf)
	if opts.PrettyPrint {
		encoder.SetIndent(2)
	}
	if err := encoder.Encode(spec); err != nil {
		return nil, fmt.Errorf("failed to encode spec to YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close YAML encoder: %w", err)
	}
	return buf.Bytes(), nil
}

func exportToJSON(spec *Spec, opts ExportOptions) ([]byte, error) {
	if opts.PrettyPrint {
		return json.MarshalIndent(spec, "", "  ")
	}
	return json.Marshal(spec)
}

// ExportToFile exports a spec to a file, inferring the format from the
// extension when unset.
func ExportToFile(spec *Spec, path string, opts ExportOptions) error {
	if opts.Format == "" {
		switch filepath.Ext(path) {
		case ".json":
			opts.Format = FormatJSON
		default:
			opts.Format = FormatYAML
		}
	}

	data, err := Export(spec, opts)
	if err != nil {
		return fmt.Errorf("failed to export spec: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write spec file: %w", err)
	}
	return nil
}

// Import deserializes a spec from bytes, detecting JSON vs YAML from the
// first non-whitespace character.
func Import(data []byte, opts ImportOptions) (*Spec, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty spec data")
	}

	isJSON := false
	for _, b := range data {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		isJSON = b == '{' || b == '['
		break
	}

	var spec Spec
	if isJSON {
		if err := json.Unmarshal(data, &spec); err != nil {
			if yamlErr := yaml.Unmarshal(data, &spec); yamlErr != nil {
				return nil, fmt.Errorf("failed to parse as JSON (%v) or YAML (%v)", err, yamlErr)
			}
		}
	} else {
		if err := yaml.Unmarshal(data, &spec); err != nil {
			if jsonErr := json.Unmarshal(data, &spec); jsonErr != nil {
				return nil, fmt.Errorf("failed to parse as YAML (%v) or JSON (%v)", err, jsonErr)
			}
		}
	}

	if opts.GenerateNewID {
		spec.Metadata.ID = uuid.New().String()
	}
	spec.Metadata.UpdatedAt = time.Now()
	if spec.Metadata.Source == "" {
		spec.Metadata.Source = "import"
	}

	if !opts.SkipValidation {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("spec validation failed: %w", err)
		}
	}
	return &spec, nil
}

// ImportFromFile imports a spec from a file
func ImportFromFile(path string, opts ImportOptions) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}
	spec, err := Import(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to import spec from %s: %w", path, err)
	}
	return spec, nil
}

// ImportFromReader imports a spec from an io.Reader
func ImportFromReader(r io.Reader, opts ImportOptions) (*Spec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec data: %w", err)
	}
	return Import(data, opts)
}

// Clone deep-copies a spec and stamps it as a new document.
func Clone(spec *Spec) (*Spec, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}

	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal spec: %w", err)
	}
	var clone Spec
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spec: %w", err)
	}

	clone.Metadata.ID = uuid.New().String()
	clone.Metadata.CreatedAt = time.Now()
	clone.Metadata.UpdatedAt = time.Now()
	clone.Metadata.Source = "clone"
	return &clone, nil
}
