package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrew/voice-tutor/pkg/models"
)

// ErrNoDocuments is returned when the corpus yields nothing to index
var ErrNoDocuments = errors.New("indexer: no documents to index")

// DefaultExtensions are the file types loaded from a corpus directory
var DefaultExtensions = []string{".md", ".txt"}

// LoadDirectory recursively reads every file under root whose extension is in
// extensions. Document ids are slash-separated paths relative to root.
func LoadDirectory(root string, extensions []string) ([]models.Document, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}

	var docs []models.Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		docs = append(docs, models.Document{ID: rel, Content: string(content), Source: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: load %s: %w", root, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, root)
	}
	return docs, nil
}
