// In-memory implementation of ConfigStore and TemplateMetaStore.
// Used when no database is configured (local dev, tests).
// Supports file-based snapshot persistence so data survives restarts.

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/agentoven/promptplane/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Configs   map[string]*models.LLMConfiguration `json:"configs"`   // key: id
	Templates map[string]*models.TemplateMetadata `json:"templates"` // key: id
}

// MemoryStore implements ConfigStore and TemplateMetaStore with in-memory maps.
type MemoryStore struct {
	mu        sync.RWMutex
	configs   map[string]*models.LLMConfiguration // key: id
	templates map[string]*models.TemplateMetadata // key: id
	codes     map[string]string                   // template code → id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutines to stop
}

// NewMemoryStore creates a new in-memory store.
// If dataDir is set, data is persisted to promptplane.json in that directory.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		configs:   make(map[string]*models.LLMConfiguration),
		templates: make(map[string]*models.TemplateMetadata),
		codes:     make(map[string]string),
		saveCh:    make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "promptplane.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().
		Str("snapshot", m.snapshotPath).
		Msg("Memory store configured")

	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop runs in a goroutine, debouncing save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

// saveSnapshot persists all data to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	data, err := json.MarshalIndent(snapshot{Configs: m.configs, Templates: m.templates}, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

// loadSnapshot reads data from disk on startup.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Configs != nil {
		m.configs = snap.Configs
	}
	if snap.Templates != nil {
		m.templates = snap.Templates
		for id, t := range m.templates {
			m.codes[t.Code] = id
		}
	}

	log.Info().
		Int("configs", len(m.configs)).
		Int("templates", len(m.templates)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops background goroutines and forces a final snapshot write.
// Safe to call multiple times (second call is a no-op).
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}

	if m.snapshotPath != "" {
		log.Info().Msg("Flushing final snapshot before shutdown...")
		m.saveSnapshot()
	}

	log.Info().Msg("Memory store closed")
	return nil
}

// ── Configuration Store ─────────────────────────────────────

func cloneConfig(c *models.LLMConfiguration) *models.LLMConfiguration {
	cp := *c
	if c.Tier != nil {
		t := *c.Tier
		cp.Tier = &t
	}
	if c.EffectiveUntil != nil {
		u := *c.EffectiveUntil
		cp.EffectiveUntil = &u
	}
	return &cp
}

func (m *MemoryStore) GetConfig(_ context.Context, id string) (*models.LLMConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "configuration", Key: id}
	}
	return cloneConfig(c), nil
}

func (m *MemoryStore) ListConfigsByInteraction(ctx context.Context, interactionCode string) ([]models.LLMConfiguration, error) {
	return m.ListConfigs(ctx, ConfigFilter{InteractionCode: interactionCode})
}

func (m *MemoryStore) ListConfigs(_ context.Context, filter ConfigFilter) ([]models.LLMConfiguration, error) {
	m.mu.RLock()
	result := make([]models.LLMConfiguration, 0, len(m.configs))
	for _, c := range m.configs {
		if filter.InteractionCode != "" && c.InteractionCode != filter.InteractionCode {
			continue
		}
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		result = append(result, *cloneConfig(c))
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, filter.Offset, filter.Limit), nil
}

func (m *MemoryStore) CreateConfig(_ context.Context, cfg *models.LLMConfiguration) error {
	m.mu.Lock()
	if _, exists := m.configs[cfg.ID]; exists {
		m.mu.Unlock()
		return &ErrAlreadyExists{Entity: "configuration", Key: cfg.ID}
	}
	m.configs[cfg.ID] = cloneConfig(cfg)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateConfig(_ context.Context, cfg *models.LLMConfiguration) error {
	m.mu.Lock()
	if _, exists := m.configs[cfg.ID]; !exists {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "configuration", Key: cfg.ID}
	}
	m.configs[cfg.ID] = cloneConfig(cfg)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteConfig(_ context.Context, id string) error {
	m.mu.Lock()
	if _, exists := m.configs[id]; !exists {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "configuration", Key: id}
	}
	delete(m.configs, id)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Template Metadata Store ─────────────────────────────────

func cloneTemplate(t *models.TemplateMetadata) *models.TemplateMetadata {
	cp := *t
	cp.Parameters = append([]string(nil), t.Parameters...)
	return &cp
}

func (m *MemoryStore) GetTemplate(_ context.Context, id string) (*models.TemplateMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "template", Key: id}
	}
	return cloneTemplate(t), nil
}

func (m *MemoryStore) GetTemplateByCode(_ context.Context, code string) (*models.TemplateMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.codes[code]
	if !ok {
		return nil, &ErrNotFound{Entity: "template", Key: code}
	}
	return cloneTemplate(m.templates[id]), nil
}

func (m *MemoryStore) listTemplates(match func(*models.TemplateMetadata) bool) []models.TemplateMetadata {
	m.mu.RLock()
	result := make([]models.TemplateMetadata, 0, len(m.templates))
	for _, t := range m.templates {
		if match == nil || match(t) {
			result = append(result, *cloneTemplate(t))
		}
	}
	m.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

func (m *MemoryStore) ListTemplatesByInteraction(_ context.Context, interactionCode string) ([]models.TemplateMetadata, error) {
	return m.listTemplates(func(t *models.TemplateMetadata) bool {
		return t.InteractionCode == interactionCode
	}), nil
}

func (m *MemoryStore) ListTemplates(_ context.Context, filter ListFilter) ([]models.TemplateMetadata, error) {
	return page(m.listTemplates(nil), filter.Offset, filter.Limit), nil
}

func (m *MemoryStore) CreateTemplate(_ context.Context, tmpl *models.TemplateMetadata) error {
	m.mu.Lock()
	if _, exists := m.templates[tmpl.ID]; exists {
		m.mu.Unlock()
		return &ErrAlreadyExists{Entity: "template", Key: tmpl.ID}
	}
	if _, taken := m.codes[tmpl.Code]; taken {
		m.mu.Unlock()
		return &ErrAlreadyExists{Entity: "template code", Key: tmpl.Code}
	}
	m.templates[tmpl.ID] = cloneTemplate(tmpl)
	m.codes[tmpl.Code] = tmpl.ID
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateTemplate(_ context.Context, tmpl *models.TemplateMetadata) error {
	m.mu.Lock()
	prev, exists := m.templates[tmpl.ID]
	if !exists {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "template", Key: tmpl.ID}
	}
	if owner, taken := m.codes[tmpl.Code]; taken && owner != tmpl.ID {
		m.mu.Unlock()
		return &ErrAlreadyExists{Entity: "template code", Key: tmpl.Code}
	}
	delete(m.codes, prev.Code)
	m.templates[tmpl.ID] = cloneTemplate(tmpl)
	m.codes[tmpl.Code] = tmpl.ID
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	t, exists := m.templates[id]
	if !exists {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "template", Key: id}
	}
	delete(m.codes, t.Code)
	delete(m.templates, id)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

var (
	_ ConfigStore       = (*MemoryStore)(nil)
	_ TemplateMetaStore = (*MemoryStore)(nil)
)
