// Package manifest loads dataset manifests and keyword vocabularies. JSON
// files are read as YAML, which is a superset.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

// DefaultVocabulary is used when no vocabulary file is configured.
var DefaultVocabulary = []string{"specific", "domain", "words"}

// LoadDataset reads a manifest either as a key to URL mapping, in file order,
// or as a list of {key, url} entries.
func LoadDataset(path string) ([]domain.DatasetEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset manifest: %w", err)
	}
	return ParseDataset(raw)
}

func ParseDataset(raw []byte) ([]domain.DatasetEntry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse dataset manifest", err)
	}
	if len(root.Content) == 0 {
		return []domain.DatasetEntry{}, nil
	}

	node := root.Content[0]
	var entries []domain.DatasetEntry
	switch node.Kind {
	case yaml.MappingNode:
		entries = make([]domain.DatasetEntry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if value.Kind != yaml.ScalarNode {
				return nil, domain.WrapError(domain.ErrInvalidInput, "parse dataset manifest",
					fmt.Errorf("line %d: url for %q must be a string", value.Line, key.Value))
			}
			entries = append(entries, domain.DatasetEntry{Key: key.Value, URL: value.Value})
		}
	case yaml.SequenceNode:
		if err := node.Decode(&entries); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse dataset manifest", err)
		}
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse dataset manifest",
			errors.New("expected a mapping or a list of entries"))
	}

	for i := range entries {
		entries[i].Key = strings.TrimSpace(entries[i].Key)
		entries[i].URL = strings.TrimSpace(entries[i].URL)
	}
	return entries, nil
}

type vocabularyFile struct {
	Vocabulary []string `yaml:"vocabulary"`
}

// LoadVocabulary reads a list of terms, or a document with a vocabulary key.
// An empty path yields DefaultVocabulary. Entries are trimmed and deduplicated
// but keep their case.
func LoadVocabulary(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return append([]string(nil), DefaultVocabulary...), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocabulary(raw)
}

func ParseVocabulary(raw []byte) ([]string, error) {
	var terms []string
	if err := yaml.Unmarshal(raw, &terms); err != nil {
		var doc vocabularyFile
		if docErr := yaml.Unmarshal(raw, &doc); docErr != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse vocabulary", err)
		}
		terms = doc.Vocabulary
	}

	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out, nil
}
