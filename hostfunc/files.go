package hostfunc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Files is the set of files produced by executed code. Names are unique;
// a later save under the same name replaces the earlier content. Files
// persist across runs until the owning session goes away.
type Files struct {
	data map[string][]byte
	mu   sync.RWMutex
}

func NewFiles() *Files {
	return &Files{data: make(map[string][]byte)}
}

// Put stores a copy of content under name.
func (f *Files) Put(name string, content []byte) {
	buf := make([]byte, len(content))
	copy(buf, content)

	f.mu.Lock()
	f.data[name] = buf
	f.mu.Unlock()
}

// Get returns a copy of the content stored under name.
func (f *Files) Get(name string) ([]byte, bool) {
	f.mu.RLock()
	content, ok := f.data[name]
	f.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, true
}

func (f *Files) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data)
}

// Names returns the stored file names in sorted order.
func (f *Files) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.data))
	for name := range f.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of the set as of the call.
func (f *Files) Snapshot() map[string][]byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]byte, len(f.data))
	for name, content := range f.data {
		buf := make([]byte, len(content))
		copy(buf, content)
		out[name] = buf
	}
	return out
}

// Save is the save_file host function.
// Args: filename (required), and either content (text, stored as UTF-8)
// or data (base64, stored as raw bytes).
func (f *Files) Save(ctx context.Context, args map[string]any) (any, error) {
	name, ok := args["filename"].(string)
	if !ok || name == "" {
		return nil, errors.New("filename required")
	}

	content, err := fileContent(args)
	if err != nil {
		return nil, err
	}

	f.Put(name, content)
	return SavedMessage(name), nil
}

// CreateDocument is the create_document host function.
// Args: filename, title, paragraphs (list of strings).
func (f *Files) CreateDocument(ctx context.Context, args map[string]any) (any, error) {
	name, ok := args["filename"].(string)
	if !ok || name == "" {
		return nil, errors.New("filename required")
	}
	title, _ := args["title"].(string)

	var paragraphs []string
	switch ps := args["paragraphs"].(type) {
	case nil:
	case []string:
		paragraphs = ps
	case []any:
		paragraphs = make([]string, 0, len(ps))
		for _, p := range ps {
			s, ok := p.(string)
			if !ok {
				s = fmt.Sprint(p)
			}
			paragraphs = append(paragraphs, s)
		}
	default:
		return nil, errors.New("paragraphs must be a list")
	}

	f.Put(name, []byte(BuildDocument(title, paragraphs)))
	return DocumentMessage(name), nil
}

func fileContent(args map[string]any) ([]byte, error) {
	if data, ok := args["data"].(string); ok {
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, errors.New("data must be base64")
		}
		return raw, nil
	}
	switch content := args["content"].(type) {
	case string:
		return []byte(content), nil
	case nil:
		return nil, errors.New("content required")
	default:
		return nil, errors.New("content must be str or bytes")
	}
}

// SavedMessage is the confirmation printed after save_file.
func SavedMessage(name string) string {
	return fmt.Sprintf("File '%s' created and ready for download.", name)
}

// DocumentMessage is the confirmation printed after create_simple_document.
func DocumentMessage(name string) string {
	return fmt.Sprintf("HTML document '%s' created. It can be opened in Word.", name)
}
