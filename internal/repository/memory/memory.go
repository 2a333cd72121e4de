// Package memory implements the repository interfaces over process memory. It enforces the
// same uniqueness and scoping rules as the postgres implementation and backs tests and
// REPOSITORY_DRIVER=memory development runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// Store holds every table. The repositories it hands out share one lock.
type Store struct {
	mu           sync.RWMutex
	documents    map[string]*model.Document
	tags         map[string]model.Tag
	documentTags map[string]map[string]struct{}
	rules        map[string]model.TaggingRule
	activity     []model.DocumentActivity
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		documents:    make(map[string]*model.Document),
		tags:         make(map[string]model.Tag),
		documentTags: make(map[string]map[string]struct{}),
		rules:        make(map[string]model.TaggingRule),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Documents() *DocumentRepository       { return &DocumentRepository{s: s} }
func (s *Store) Tags() *TagRepository                 { return &TagRepository{s: s} }
func (s *Store) TaggingRules() *TaggingRuleRepository { return &TaggingRuleRepository{s: s} }
func (s *Store) Activity() *ActivityRepository        { return &ActivityRepository{s: s} }

// PutTag inserts or replaces a tag.
func (s *Store) PutTag(t model.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[t.ID] = t
}

// PutTaggingRule inserts or replaces a rule with its conditions and actions.
func (s *Store) PutTaggingRule(r model.TaggingRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
}

// ActivityEntries returns a copy of the activity log in insertion order.
func (s *Store) ActivityEntries() []model.DocumentActivity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.DocumentActivity(nil), s.activity...)
}

// DocumentTagIDs returns the sorted tag IDs linked to a document.
func (s *Store) DocumentTagIDs(documentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.documentTags[documentID]))
	for id := range s.documentTags[documentID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DocumentCount returns the number of rows, trashed included.
func (s *Store) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// DocumentRepository implements repository.DocumentRepository.
type DocumentRepository struct {
	s *Store
}

var _ repository.DocumentRepository = (*DocumentRepository)(nil)

func (r *DocumentRepository) lookup(organizationID, id string) (*model.Document, error) {
	d, ok := r.s.documents[id]
	if !ok || d.OrganizationID != organizationID {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func cloneDocument(d *model.Document) *model.Document {
	c := *d
	return &c
}

func (r *DocumentRepository) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.documents[doc.ID]; exists {
		return nil, fmt.Errorf("insert document %s: %w", doc.ID, repository.ErrConflict)
	}
	for _, d := range r.s.documents {
		if d.OrganizationID == doc.OrganizationID && d.OriginalSHA256 == doc.OriginalSHA256 {
			return nil, fmt.Errorf("insert document %s: %w", doc.ID, repository.ErrConflict)
		}
	}

	stored := cloneDocument(doc)
	now := r.s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	r.s.documents[stored.ID] = stored
	return cloneDocument(stored), nil
}

func (r *DocumentRepository) GetByID(_ context.Context, organizationID, id string) (*model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, err := r.lookup(organizationID, id)
	if err != nil {
		return nil, err
	}
	return cloneDocument(d), nil
}

func (r *DocumentRepository) GetBySha256Hash(_ context.Context, organizationID, hash string) (*model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.documents {
		if d.OrganizationID == organizationID && d.OriginalSHA256 == hash {
			return cloneDocument(d), nil
		}
	}
	return nil, repository.ErrNotFound
}

// filter returns matching documents sorted by less.
func (r *DocumentRepository) filter(match func(*model.Document) bool, less func(a, b *model.Document) bool) []model.Document {
	var found []*model.Document
	for _, d := range r.s.documents {
		if match(d) {
			found = append(found, d)
		}
	}
	sort.Slice(found, func(i, j int) bool { return less(found[i], found[j]) })
	out := make([]model.Document, 0, len(found))
	for _, d := range found {
		out = append(out, *d)
	}
	return out
}

func paginate(items []model.Document, pq repository.PageQuery) *repository.PageResult[model.Document] {
	total := len(items)
	start := min(max(pq.Offset, 0), total)
	end := total
	if pq.Limit > 0 {
		end = min(start+pq.Limit, total)
	}
	return &repository.PageResult[model.Document]{Items: items[start:end], Total: total}
}

func newestFirst(a, b *model.Document) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func oldestFirst(a, b *model.Document) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func deletedAt(d *model.Document) time.Time {
	if d.DeletedAt == nil {
		return time.Time{}
	}
	return *d.DeletedAt
}

func (r *DocumentRepository) List(_ context.Context, organizationID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := r.filter(func(d *model.Document) bool {
		return d.OrganizationID == organizationID && !d.IsDeleted
	}, newestFirst)
	return paginate(items, pq), nil
}

func (r *DocumentRepository) ListDeleted(_ context.Context, organizationID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := r.filter(func(d *model.Document) bool {
		return d.OrganizationID == organizationID && d.IsDeleted
	}, func(a, b *model.Document) bool { return deletedAt(a).After(deletedAt(b)) })
	return paginate(items, pq), nil
}

func (r *DocumentRepository) GetDeletedDocuments(_ context.Context, organizationID string) ([]model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(d *model.Document) bool {
		return d.OrganizationID == organizationID && d.IsDeleted
	}, func(a, b *model.Document) bool { return deletedAt(a).Before(deletedAt(b)) }), nil
}

func (r *DocumentRepository) Update(_ context.Context, organizationID, id string, upd model.DocumentUpdate) (*model.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, err := r.lookup(organizationID, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		d.Name = *upd.Name
	}
	if upd.Content != nil {
		d.Content = *upd.Content
	}
	d.UpdatedAt = r.s.now()
	return cloneDocument(d), nil
}

func (r *DocumentRepository) Trash(_ context.Context, organizationID, id string, userID *string, at time.Time) (*model.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, err := r.lookup(organizationID, id)
	if err != nil {
		return nil, err
	}
	if d.IsDeleted {
		return cloneDocument(d), nil
	}
	d.IsDeleted = true
	d.DeletedAt = &at
	d.DeletedBy = userID
	d.UpdatedAt = r.s.now()
	return cloneDocument(d), nil
}

func (r *DocumentRepository) Restore(_ context.Context, organizationID, id string, in model.RestoreInput) (*model.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, err := r.lookup(organizationID, id)
	if err != nil {
		return nil, err
	}
	d.IsDeleted = false
	d.DeletedAt = nil
	d.DeletedBy = nil
	if in.Name != "" {
		d.Name = in.Name
	}
	if in.OriginalName != "" {
		d.OriginalName = in.OriginalName
	}
	if in.CreatedBy != nil {
		d.CreatedBy = in.CreatedBy
	}
	d.UpdatedAt = r.s.now()
	return cloneDocument(d), nil
}

func (r *DocumentRepository) Delete(_ context.Context, organizationID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.lookup(organizationID, id); err != nil {
		return err
	}
	delete(r.s.documents, id)
	delete(r.s.documentTags, id)

	kept := r.s.activity[:0]
	for _, a := range r.s.activity {
		if a.DocumentID != id {
			kept = append(kept, a)
		}
	}
	r.s.activity = kept
	return nil
}

func (r *DocumentRepository) GetOrganizationStats(_ context.Context, organizationID string) (*model.OrganizationStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var st model.OrganizationStats
	for _, d := range r.s.documents {
		if d.OrganizationID != organizationID {
			continue
		}
		if d.IsDeleted {
			st.DeletedDocumentsCount++
			st.DeletedDocumentsSize += d.OriginalSize
		} else {
			st.DocumentsCount++
			st.DocumentsSize += d.OriginalSize
		}
	}
	st.TotalDocumentsCount = st.DocumentsCount + st.DeletedDocumentsCount
	st.TotalDocumentsSize = st.DocumentsSize + st.DeletedDocumentsSize
	return &st, nil
}

func (r *DocumentRepository) GetExpiredDeletedDocuments(_ context.Context, before time.Time) ([]model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(d *model.Document) bool {
		return d.IsDeleted && d.DeletedAt != nil && d.DeletedAt.Before(before)
	}, func(a, b *model.Document) bool { return deletedAt(a).Before(deletedAt(b)) }), nil
}

func (r *DocumentRepository) IterateOrganizationDocuments(ctx context.Context, organizationID string, pageSize int, fn func(page []model.Document) error) error {
	if pageSize <= 0 {
		pageSize = 100
	}

	r.s.mu.RLock()
	all := r.filter(func(d *model.Document) bool {
		return d.OrganizationID == organizationID && !d.IsDeleted
	}, oldestFirst)
	r.s.mu.RUnlock()

	for start := 0; start < len(all); start += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+pageSize, len(all))
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// TagRepository implements repository.TagRepository.
type TagRepository struct {
	s *Store
}

var _ repository.TagRepository = (*TagRepository)(nil)

func (r *TagRepository) GetByID(_ context.Context, organizationID, id string) (*model.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tags[id]
	if !ok || t.OrganizationID != organizationID {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *TagRepository) AddTagToDocument(_ context.Context, documentID, tagID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documents[documentID]; !ok {
		return false, fmt.Errorf("document %s: %w", documentID, repository.ErrNotFound)
	}
	if _, ok := r.s.tags[tagID]; !ok {
		return false, fmt.Errorf("tag %s: %w", tagID, repository.ErrNotFound)
	}
	linked := r.s.documentTags[documentID]
	if linked == nil {
		linked = make(map[string]struct{})
		r.s.documentTags[documentID] = linked
	}
	if _, ok := linked[tagID]; ok {
		return false, nil
	}
	linked[tagID] = struct{}{}
	return true, nil
}

func (r *TagRepository) RemoveAllTagsFromDocument(_ context.Context, documentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.documentTags, documentID)
	return nil
}

func (r *TagRepository) ListDocumentTags(_ context.Context, documentID string) ([]model.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tags := make([]model.Tag, 0, len(r.s.documentTags[documentID]))
	for id := range r.s.documentTags[documentID] {
		tags = append(tags, r.s.tags[id])
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// TaggingRuleRepository implements repository.TaggingRuleRepository.
type TaggingRuleRepository struct {
	s *Store
}

var _ repository.TaggingRuleRepository = (*TaggingRuleRepository)(nil)

func (r *TaggingRuleRepository) ListByOrganization(_ context.Context, organizationID string, enabledOnly bool) ([]model.TaggingRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rules := make([]model.TaggingRule, 0)
	for _, rule := range r.s.rules {
		if rule.OrganizationID != organizationID || (enabledOnly && !rule.Enabled) {
			continue
		}
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (r *TaggingRuleRepository) GetByID(_ context.Context, organizationID, id string) (*model.TaggingRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rule, ok := r.s.rules[id]
	if !ok || rule.OrganizationID != organizationID {
		return nil, repository.ErrNotFound
	}
	return &rule, nil
}

// ActivityRepository implements repository.ActivityRepository.
type ActivityRepository struct {
	s *Store
}

var _ repository.ActivityRepository = (*ActivityRepository)(nil)

func (r *ActivityRepository) Create(_ context.Context, entry *model.DocumentActivity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documents[entry.DocumentID]; !ok {
		return fmt.Errorf("document %s: %w", entry.DocumentID, repository.ErrNotFound)
	}
	r.s.activity = append(r.s.activity, *entry)
	return nil
}
