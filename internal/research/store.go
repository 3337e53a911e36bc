package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const papersFileName = "papers_info.json"

// ErrInvalidTopic is returned for topics that do not map onto a single
// folder inside the store directory.
var ErrInvalidTopic = errors.New("invalid topic")

// Paper is the stored metadata of one arXiv paper.
type Paper struct {
	ID        string   `json:"-"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Summary   string   `json:"summary"`
	PDFURL    string   `json:"pdf_url"`
	Published string   `json:"published"`
}

// Papers keeps papers in the order they were first stored.
type Papers = orderedmap.OrderedMap[string, Paper]

// Store keeps paper metadata as <dir>/<topic>/papers_info.json.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// TopicDir maps a free-form topic onto its folder name.
func TopicDir(topic string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(topic)), " ", "_")
}

// topicPath returns the folder of topic inside the store directory.
func (s *Store) topicPath(topic string) (string, error) {
	name := TopicDir(topic)
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return filepath.Join(s.dir, name), nil
}

// Save merges papers into the topic file and returns the merged set.
func (s *Store) Save(topic string, papers []Paper) (*Papers, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.topicPath(topic)
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create topic dir: %w", err)
	}
	path := filepath.Join(dir, papersFileName)

	merged, err := readPapers(path)
	if err != nil {
		// A corrupt file is replaced.
		merged = orderedmap.New[string, Paper]()
	}
	for _, paper := range papers {
		merged.Set(paper.ID, paper)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode papers: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, "", fmt.Errorf("write papers: %w", err)
	}
	return merged, path, nil
}

// Topic returns the stored papers of a topic. ok is false when the topic
// has never been searched.
func (s *Store) Topic(topic string) (*Papers, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.topicPath(topic)
	if err != nil {
		return nil, false, err
	}
	papers, err := readPapers(filepath.Join(dir, papersFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	return papers, true, nil
}

// Folders lists topic folders that hold a papers file, sorted by name.
func (s *Store) Folders() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var folders []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, entry.Name(), papersFileName)); err == nil {
			folders = append(folders, entry.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// Find looks a paper up across every topic folder.
func (s *Store) Find(id string) (Paper, bool, error) {
	folders, err := s.Folders()
	if err != nil {
		return Paper{}, false, err
	}
	for _, folder := range folders {
		papers, _, err := s.Topic(folder)
		if err != nil {
			continue
		}
		if paper, ok := papers.Get(id); ok {
			paper.ID = id
			return paper, true, nil
		}
	}
	return Paper{}, false, nil
}

func readPapers(path string) (*Papers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	papers := orderedmap.New[string, Paper]()
	if err := json.Unmarshal(data, papers); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return papers, nil
}
