// Package templates implements the Versioned Template Store and the
// template metadata service.
//
// Bodies live in an object store at {topic}/{version}. A sibling
// {topic}/_latest object holds the version "latest" resolves to; without it
// the most recently modified version wins. Versions are immutable once
// written.
package templates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agentoven/promptplane/internal/objectstore"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/pkg/models"
)

const latestMarker = "_latest"

var tracer = otel.Tracer("promptplane/templates")

var (
	ErrVersionExists   = errors.New("template version already exists")
	ErrVersionNotFound = errors.New("template version not found")
	ErrLatestDeletion  = errors.New("cannot delete the version currently marked latest")
	ErrInvalidName     = errors.New("invalid template topic or version")
)

// Store is the versioned template store.
type Store struct {
	objects objectstore.Store
	bodies  *lru.Cache[models.TemplateRef, string] // concrete versions only
}

// NewStore creates a template store over objects. cacheSize bounds the body
// cache; 0 picks a default.
func NewStore(objects objectstore.Store, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[models.TemplateRef, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("template body cache: %w", err)
	}
	return &Store{objects: objects, bodies: cache}, nil
}

func validTopic(topic string) error {
	if topic == "" || strings.ContainsAny(topic, "/\\") || strings.HasPrefix(topic, ".") {
		return fmt.Errorf("%w: topic %q", ErrInvalidName, topic)
	}
	return nil
}

func validVersion(version string) error {
	if version == "" || strings.ContainsAny(version, "/\\") || strings.HasPrefix(version, ".") ||
		version == latestMarker || version == models.LatestVersion {
		return fmt.Errorf("%w: version %q", ErrInvalidName, version)
	}
	return nil
}

func versionKey(topic, version string) string { return topic + "/" + version }

func markerKey(topic string) string { return topic + "/" + latestMarker }

func versionNotFound(topic, version string) error {
	return fmt.Errorf("%w: %w", ErrVersionNotFound,
		&store.ErrNotFound{Entity: "template version", Key: versionKey(topic, version)})
}

// Get returns the body of topic at version; "latest" (or empty) resolves
// through the latest marker.
func (s *Store) Get(ctx context.Context, topic, version string) (*models.Template, error) {
	ctx, span := tracer.Start(ctx, "templates.Get")
	defer span.End()
	span.SetAttributes(attribute.String("template.topic", topic), attribute.String("template.version", version))

	if err := validTopic(topic); err != nil {
		return nil, err
	}
	if version == "" || version == models.LatestVersion {
		v, err := s.Latest(ctx, topic)
		if err != nil {
			return nil, err
		}
		version = v
	} else if err := validVersion(version); err != nil {
		return nil, err
	}

	ref := models.TemplateRef{Topic: topic, Version: version}
	if body, ok := s.bodies.Get(ref); ok {
		return &models.Template{Topic: topic, Version: version, Body: body}, nil
	}
	data, err := s.objects.Get(ctx, versionKey(topic, version))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotExist) {
			return nil, versionNotFound(topic, version)
		}
		return nil, fmt.Errorf("read template %s: %w", ref, err)
	}
	s.bodies.Add(ref, string(data))
	return &models.Template{Topic: topic, Version: version, Body: string(data)}, nil
}

// Exists reports whether ref resolves to a stored body.
func (s *Store) Exists(ctx context.Context, ref models.TemplateRef) error {
	_, err := s.Get(ctx, ref.Topic, ref.VersionOrLatest())
	return err
}

// Latest resolves the version "latest" points at: the marker when present,
// otherwise the most recently modified version.
func (s *Store) Latest(ctx context.Context, topic string) (string, error) {
	if err := validTopic(topic); err != nil {
		return "", err
	}
	data, err := s.objects.Get(ctx, markerKey(topic))
	switch {
	case err == nil:
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
		log.Warn().Str("topic", topic).Msg("Empty latest marker, falling back to newest version")
	case !errors.Is(err, objectstore.ErrNotExist):
		return "", fmt.Errorf("read latest marker for %s: %w", topic, err)
	}

	versions, err := s.listVersions(ctx, topic)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", versionNotFound(topic, models.LatestVersion)
	}
	return versions[0].Version, nil
}

// listVersions returns the stored versions newest first (ties broken by
// version descending), without the IsLatest flag.
func (s *Store) listVersions(ctx context.Context, topic string) ([]models.TemplateVersion, error) {
	objs, err := s.objects.List(ctx, topic+"/")
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", topic, err)
	}
	out := make([]models.TemplateVersion, 0, len(objs))
	for _, o := range objs {
		version := strings.TrimPrefix(o.Key, topic+"/")
		if version == latestMarker || strings.Contains(version, "/") {
			continue
		}
		out = append(out, models.TemplateVersion{Topic: topic, Version: version, Size: o.Size, ModifiedAt: o.ModTime})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ModifiedAt.After(out[j].ModifiedAt)
		}
		return out[i].Version > out[j].Version
	})
	return out, nil
}

// ListVersions returns every version of topic, newest first, flagging the
// one "latest" resolves to.
func (s *Store) ListVersions(ctx context.Context, topic string) ([]models.TemplateVersion, error) {
	ctx, span := tracer.Start(ctx, "templates.ListVersions")
	defer span.End()

	if err := validTopic(topic); err != nil {
		return nil, err
	}
	versions, err := s.listVersions(ctx, topic)
	if err != nil || len(versions) == 0 {
		return versions, err
	}
	latest, err := s.Latest(ctx, topic)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		versions[i].IsLatest = versions[i].Version == latest
	}
	return versions, nil
}

// Save stores body as a new version. Existing versions are never overwritten.
func (s *Store) Save(ctx context.Context, topic, version, body string) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	if err := validVersion(version); err != nil {
		return err
	}
	err := s.objects.PutIfAbsent(ctx, versionKey(topic, version), []byte(body))
	if errors.Is(err, objectstore.ErrExists) {
		return fmt.Errorf("%w: %w", ErrVersionExists,
			&store.ErrAlreadyExists{Entity: "template version", Key: versionKey(topic, version)})
	}
	if err != nil {
		return fmt.Errorf("save template %s/%s: %w", topic, version, err)
	}
	log.Info().Str("topic", topic).Str("version", version).Int("bytes", len(body)).Msg("Template version saved")
	return nil
}

// SetLatest pins "latest" to an existing version.
func (s *Store) SetLatest(ctx context.Context, topic, version string) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	if err := validVersion(version); err != nil {
		return err
	}
	if _, err := s.objects.Stat(ctx, versionKey(topic, version)); err != nil {
		if errors.Is(err, objectstore.ErrNotExist) {
			return versionNotFound(topic, version)
		}
		return err
	}
	if err := s.objects.Put(ctx, markerKey(topic), []byte(version)); err != nil {
		return fmt.Errorf("write latest marker for %s: %w", topic, err)
	}
	log.Info().Str("topic", topic).Str("version", version).Msg("Template latest marker set")
	return nil
}

// Delete removes a version. The version "latest" currently resolves to
// cannot be deleted.
func (s *Store) Delete(ctx context.Context, topic, version string) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	if err := validVersion(version); err != nil {
		return err
	}
	latest, err := s.Latest(ctx, topic)
	if err != nil && !errors.Is(err, ErrVersionNotFound) {
		return err
	}
	if latest == version {
		return fmt.Errorf("%w: %s/%s", ErrLatestDeletion, topic, version)
	}
	if err := s.objects.Delete(ctx, versionKey(topic, version)); err != nil {
		if errors.Is(err, objectstore.ErrNotExist) {
			return versionNotFound(topic, version)
		}
		return err
	}
	s.bodies.Remove(models.TemplateRef{Topic: topic, Version: version})
	log.Info().Str("topic", topic).Str("version", version).Msg("Template version deleted")
	return nil
}

// CreateVersion copies source (a version or "latest") to newVersion.
func (s *Store) CreateVersion(ctx context.Context, topic, source, newVersion string) (*models.Template, error) {
	src, err := s.Get(ctx, topic, source)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, topic, newVersion, src.Body); err != nil {
		return nil, err
	}
	return &models.Template{Topic: topic, Version: newVersion, Body: src.Body}, nil
}
