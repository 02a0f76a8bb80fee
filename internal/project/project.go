package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"shotforge/internal/assetapply"
	"shotforge/internal/script"
	"shotforge/internal/services"
)

// Document is one episode's working state.
type Document struct {
	Draft         script.Draft       `json:"draft"`
	Script        *script.ScriptData `json:"scriptData,omitempty"`
	Shots         []script.Shot      `json:"shots,omitempty"`
	CharacterRefs []assetapply.Ref   `json:"characterRefs,omitempty"`
	SceneRefs     []assetapply.Ref   `json:"sceneRefs,omitempty"`
	PropRefs      []assetapply.Ref   `json:"propRefs,omitempty"`
}

// Format is a supported file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the path extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", services.Wrap(services.ErrValidation, "", "project", fmt.Sprintf("unsupported file extension for %s (use .json, .yaml, or .yml)", path), nil)
}

// LoadDocument reads a project document.
func LoadDocument(path string) (*Document, error) {
	var doc Document
	if err := ReadFile(path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveDocument writes a project document.
func SaveDocument(path string, doc *Document) error {
	return WriteFile(path, doc)
}

// LoadLibrary reads an asset library. A missing file yields an empty library.
func LoadLibrary(path string) (*script.Library, error) {
	var lib script.Library
	if err := ReadFile(path, &lib); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return &lib, nil
		}
		return nil, err
	}
	return &lib, nil
}

// ReadFile decodes path into v. YAML is normalized through JSON so both
// formats share the json struct tags.
func ReadFile(path string, v any) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "", "read", path, err)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if format == FormatYAML {
		if data, err = yamlToJSON(data); err != nil {
			return services.Wrap(services.ErrValidation, "", "decode", path, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return services.Wrap(services.ErrValidation, "", "decode", path, err)
	}
	return nil
}

// WriteFile encodes v to path atomically.
func WriteFile(path string, v any) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if format == FormatYAML {
		if data, err = jsonToYAML(data); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	} else {
		data = append(data, '\n')
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return writeFileAtomic(path, data, 0o644)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	if tree == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(tree)
}

func jsonToYAML(data []byte) ([]byte, error) {
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shotforge-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
