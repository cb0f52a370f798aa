package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prathamdby/pi-mono/pkg/store"
)

// Manager implements the store.Manager interface using JSONL files.
type Manager struct {
	rootDir   string
	agentDir  string
	sessDir   string
	eventChan chan string
	mu        sync.RWMutex
	subs      []chan string
}

func NewManager(rootDir string) *Manager {
	m := &Manager{
		rootDir:   rootDir,
		agentDir:  filepath.Join(rootDir, "agents"),
		sessDir:   filepath.Join(rootDir, "sessions"),
		eventChan: make(chan string, 100),
	}
	// Best effort creation; NewSession re-checks.
	os.MkdirAll(m.agentDir, 0755)
	os.MkdirAll(m.sessDir, 0755)

	go m.broadcastLoop()
	return m
}

// Index represents the index.json structure
type Index struct {
	Sessions []SessionMeta `json:"sessions"`
}

type SessionMeta struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	AgentID   string    `json:"agent_id"`
	AgentName string    `json:"agent_name"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

func (m *Manager) SetSessionStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	indexPath := filepath.Join(m.sessDir, "index.json")
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}

	found := false
	for i := range idx.Sessions {
		if idx.Sessions[i].ID == id {
			idx.Sessions[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("session %s not found", id)
	}

	updatedData, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(indexPath, updatedData, 0644)
}

func (m *Manager) updateIndex(meta SessionMeta) error {
	indexPath := filepath.Join(m.sessDir, "index.json")

	var idx Index
	data, err := os.ReadFile(indexPath)
	if err == nil {
		json.Unmarshal(data, &idx)
	}

	found := false
	for i, s := range idx.Sessions {
		if s.ID == meta.ID {
			idx.Sessions[i] = meta
			found = true
			break
		}
	}
	if !found {
		idx.Sessions = append(idx.Sessions, meta)
	}

	updatedData, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(indexPath, updatedData, 0644)
}

func (m *Manager) readIndex() ([]SessionMeta, error) {
	indexPath := filepath.Join(m.sessDir, "index.json")
	data, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		return []SessionMeta{}, nil
	}
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, err
	}
	return idx.Sessions, nil
}

func (m *Manager) broadcastLoop() {
	for id := range m.eventChan {
		m.mu.RLock()
		for _, sub := range m.subs {
			// Non-blocking send
			select {
			case sub <- id:
			default:
			}
		}
		m.mu.RUnlock()
	}
}

func (m *Manager) Subscribe() <-chan string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan string, 10)
	m.subs = append(m.subs, ch)
	return ch
}

func (m *Manager) publish(id string) {
	select {
	case m.eventChan <- id:
	default:
	}
}

func (m *Manager) NewSession(agentID, parentSessionID string) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if agentID == "" {
		agentID = "default"
	}

	var agent *store.Agent
	agent, err := m.GetAgent(agentID)
	if err != nil {
		// If requesting "default" and it doesn't exist, fall back to any
		// existing agent, or create one.
		if agentID == "default" {
			agents, listErr := m.listAgentsLocked()
			if listErr == nil && len(agents) > 0 {
				agent = &agents[0]
			} else {
				newDefault := &store.Agent{
					ID:           "default",
					Name:         "Default Agent",
					Instructions: "You are a helpful assistant.",
					Model:        "models/gemini-2.0-flash",
				}
				if createErr := m.newAgentLocked(newDefault); createErr != nil {
					return nil, fmt.Errorf("failed to create default agent: %w", createErr)
				}
				agent = newDefault
			}
		} else {
			return nil, fmt.Errorf("failed to get agent %s: %w", agentID, err)
		}
	}

	if err := os.MkdirAll(m.sessDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	id := uuid.New().String()
	path := filepath.Join(m.sessDir, id+".jsonl")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create session file: %w", err)
	}

	s := &Session{
		id:         id,
		filePath:   path,
		entries:    make(map[string]store.Entry),
		fileHandle: f,
		labels:     make(map[string]string),
		notify:     m.publish,
	}

	cwd, _ := os.Getwd()
	now := time.Now()
	header := store.Header{
		Type:          store.TypeSession,
		ID:            id,
		Agent:         *agent,
		Version:       1,
		ParentSession: parentSessionID,
		Cwd:           cwd,
		CreatedAt:     now,
	}
	s.header = header

	if err := s.writeLine(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write session header: %w", err)
	}

	meta := SessionMeta{
		ID:        id,
		Path:      path,
		Status:    store.SessionStatusActive,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Created:   now,
		Modified:  now,
	}
	if err := m.updateIndex(meta); err != nil {
		slog.Error("Failed to update session index", "error", err)
	}

	return s, nil
}

func (m *Manager) LoadSession(id string) (store.Session, error) {
	path := filepath.Join(m.sessDir, id+".jsonl")
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}

	s := &Session{
		filePath:   path,
		entries:    make(map[string]store.Entry),
		fileHandle: f,
		labels:     make(map[string]string),
		notify:     m.publish,
	}

	if err := m.loadEntries(s); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	return s, nil
}

func (m *Manager) ContinueRecent() (store.Session, error) {
	infos, err := m.ListSessions()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("no sessions found in %s", m.sessDir)
	}
	return m.LoadSession(infos[0].ID)
}

func (m *Manager) ForkFrom(id string) (store.Session, error) {
	source, err := m.LoadSession(id)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	jsonlSource := source.(*Session)
	agentID := jsonlSource.header.Agent.ID

	dest, err := m.NewSession(agentID, source.ID())
	if err != nil {
		return nil, err
	}

	if _, err := jsonlSource.fileHandle.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(jsonlSource.fileHandle)
	scanner.Scan() // skip header

	for scanner.Scan() {
		var e store.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if err := dest.Append(e); err != nil {
			dest.Close()
			return nil, err
		}
	}

	return dest, nil
}

func (m *Manager) ListSessions() ([]store.SessionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metas, err := m.readIndex()
	if err != nil {
		return nil, err
	}

	var infos []store.SessionInfo
	for _, meta := range metas {
		infos = append(infos, store.SessionInfo{
			ID:        meta.ID,
			Path:      meta.Path,
			Status:    meta.Status,
			AgentID:   meta.AgentID,
			AgentName: meta.AgentName,
			Created:   meta.Created,
			Modified:  meta.Modified,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Modified.After(infos[j].Modified)
	})

	return infos, nil
}

// Agent Methods

// Internal helper without locking
func (m *Manager) listAgentsLocked() ([]store.Agent, error) {
	if _, err := os.Stat(m.agentDir); os.IsNotExist(err) {
		return []store.Agent{}, nil
	}

	entries, err := os.ReadDir(m.agentDir)
	if err != nil {
		return nil, err
	}

	var agents []store.Agent
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			data, err := os.ReadFile(filepath.Join(m.agentDir, e.Name()))
			if err != nil {
				continue // Skip bad files
			}
			var a store.Agent
			if err := json.Unmarshal(data, &a); err == nil {
				agents = append(agents, a)
			}
		}
	}
	return agents, nil
}

// Internal helper without locking
func (m *Manager) newAgentLocked(a *store.Agent) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	path := filepath.Join(m.agentDir, a.ID+".json")
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (m *Manager) NewAgent(a *store.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newAgentLocked(a)
}

func (m *Manager) UpdateAgent(a *store.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		return fmt.Errorf("agent ID is required for update")
	}

	path := filepath.Join(m.agentDir, a.ID+".json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("agent %s not found", a.ID)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (m *Manager) DeleteAgent(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(m.agentDir, id+".json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("agent %s not found", id)
	}

	return os.Remove(path)
}

func (m *Manager) ListAgents() ([]store.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAgentsLocked()
}

func (m *Manager) GetAgent(id string) (*store.Agent, error) {
	path := filepath.Join(m.agentDir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a store.Agent
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *Manager) loadEntries(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fileHandle.Seek(0, io.SeekStart); err != nil {
		return err
	}

	scanner := bufio.NewScanner(s.fileHandle)
	var lastID string

	if scanner.Scan() {
		var h store.Header
		if err := json.Unmarshal(scanner.Bytes(), &h); err != nil {
			return fmt.Errorf("failed to unmarshal header: %w", err)
		}
		s.id = h.ID
		s.header = h
	}

	for scanner.Scan() {
		var e store.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		s.entries[e.ID] = e
		lastID = e.ID

		if e.Type == store.TypeLabel && e.Label != nil {
			s.labels[e.Label.TargetID] = e.Label.Label
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	s.leafID = lastID
	return nil
}
