package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/auric-atelier/api/internal/domain"
	pfirestore "github.com/auric-atelier/api/internal/platform/firestore"
)

const messageTemplatesCollection = "messageTemplates"

const (
	defaultTemplatePageSize = 50
	maxTemplatePageSize     = 200
)

// TemplateRepository stores message templates keyed by template name.
type TemplateRepository struct {
	provider  *pfirestore.Provider
	templates *pfirestore.BaseRepository[domain.MessageTemplate]
}

// NewTemplateRepository constructs a Firestore-backed template repository.
func NewTemplateRepository(provider *pfirestore.Provider) (*TemplateRepository, error) {
	if provider == nil {
		return nil, errors.New("template repository requires firestore provider")
	}
	return &TemplateRepository{
		provider:  provider,
		templates: pfirestore.NewBaseRepository[domain.MessageTemplate](provider, messageTemplatesCollection, nil, nil),
	}, nil
}

// FindByName fetches a template by its document ID.
func (r *TemplateRepository) FindByName(ctx context.Context, name string) (domain.MessageTemplate, error) {
	if r == nil || r.templates == nil {
		return domain.MessageTemplate{}, errors.New("template repository not initialised")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.MessageTemplate{}, errors.New("template find: name is required")
	}

	doc, err := r.templates.Get(ctx, name)
	if err != nil {
		return domain.MessageTemplate{}, pfirestore.WrapError("messageTemplates.find", err)
	}
	template := doc.Data
	template.Name = doc.ID
	return template, nil
}

// Upsert writes the template under its name.
func (r *TemplateRepository) Upsert(ctx context.Context, template domain.MessageTemplate) error {
	if r == nil || r.templates == nil {
		return errors.New("template repository not initialised")
	}
	name := strings.TrimSpace(template.Name)
	if name == "" {
		return errors.New("template upsert: name is required")
	}
	if _, err := r.templates.Set(ctx, name, template); err != nil {
		return pfirestore.WrapError("messageTemplates.upsert", err)
	}
	return nil
}

// List returns templates ordered by name.
func (r *TemplateRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.MessageTemplate], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.MessageTemplate]{}, errors.New("template repository not initialised")
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = defaultTemplatePageSize
	}
	if pageSize > maxTemplatePageSize {
		pageSize = maxTemplatePageSize
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.MessageTemplate]{}, pfirestore.WrapError("messageTemplates.list", err)
	}

	query := client.Collection(messageTemplatesCollection).Query.
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		query = query.StartAfter(token)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var templates []domain.MessageTemplate
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.MessageTemplate]{}, pfirestore.WrapError("messageTemplates.list", err)
		}
		var template domain.MessageTemplate
		if err := snap.DataTo(&template); err != nil {
			return domain.CursorPage[domain.MessageTemplate]{}, fmt.Errorf("decode template %s: %w", snap.Ref.ID, err)
		}
		template.Name = snap.Ref.ID
		templates = append(templates, template)
	}

	hasMore := len(templates) > pageSize
	if hasMore {
		templates = templates[:pageSize]
	}
	var nextToken string
	if hasMore && len(templates) > 0 {
		nextToken = templates[len(templates)-1].Name
	}

	return domain.CursorPage[domain.MessageTemplate]{
		Items:         templates,
		NextPageToken: nextToken,
	}, nil
}
