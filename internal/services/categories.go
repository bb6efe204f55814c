package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// CategoryService manages category lifecycles: shared system defaults
// plus per-user categories with restore-on-recreate semantics.
type CategoryService struct {
	store CategoryStore
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

// CategoryPatch carries the optional fields of a category update.
type CategoryPatch struct {
	Name *string
	Type *core.TransactionType
}

// List returns the categories visible to a user: system defaults first,
// then the user's own, both filtered by type when given.
func (s *CategoryService) List(ctx context.Context, userID int64, typ *core.TransactionType, skip, limit int) ([]core.Category, error) {
	cats, err := s.store.CategoriesForUser(ctx, userID, typ, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Create adds a user category. If the user previously soft-deleted a
// category with the same name and type, that row is restored instead so
// historical transactions keep pointing at the original id.
func (s *CategoryService) Create(ctx context.Context, userID int64, name string, typ core.TransactionType) (*core.Category, error) {
	cat := core.Category{Name: name, Type: typ}
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	deleted, err := s.store.DeletedCategoryByName(ctx, userID, name, typ)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("lookup deleted category: %w", err)
	}
	if deleted != nil {
		deleted.Restore()
		if err := s.store.UpdateCategory(ctx, deleted); err != nil {
			return nil, fmt.Errorf("restore category: %w", err)
		}
		slog.InfoContext(ctx, "Category restored", applog.FieldCategoryID, deleted.ID, applog.FieldUserID, userID, "name", deleted.Name)
		return deleted, nil
	}

	cat.UserID = &userID
	cat.IsDefault = false
	if err := s.store.CreateCategory(ctx, &cat); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category created", applog.FieldCategoryID, cat.ID, applog.FieldUserID, userID, "name", cat.Name)
	return &cat, nil
}

// Get returns a category visible to the user together with the number
// of the user's active transactions referencing it.
func (s *CategoryService) Get(ctx context.Context, userID, id int64) (*core.Category, int64, error) {
	cat, err := s.store.CategoryByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if !cat.AccessibleBy(userID) {
		return nil, 0, core.ErrNotFound
	}

	count, err := s.store.CategoryTransactionCount(ctx, userID, id)
	if err != nil {
		return nil, 0, fmt.Errorf("count category transactions: %w", err)
	}
	return cat, count, nil
}

// Update patches a user category. System defaults are immutable and
// another user's category cannot be touched.
func (s *CategoryService) Update(ctx context.Context, userID, id int64, patch CategoryPatch) (*core.Category, error) {
	cat, err := s.store.CategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cat.IsDefault {
		return nil, fmt.Errorf("%w: %w", core.ErrDefaultImmutable, core.ErrPermissionDenied)
	}
	if cat.UserID == nil || *cat.UserID != userID {
		return nil, core.ErrPermissionDenied
	}

	if patch.Name != nil {
		cat.Name = *patch.Name
	}
	if patch.Type != nil {
		cat.Type = *patch.Type
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCategory(ctx, cat); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return cat, nil
}

// Delete soft-deletes a user category. Associated transactions keep
// their category_id; the category is just hidden until restored.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) error {
	cat, err := s.store.CategoryByID(ctx, id)
	if err != nil {
		return err
	}
	if cat.IsDefault {
		return fmt.Errorf("cannot delete system default category: %w", core.ErrPermissionDenied)
	}
	if cat.UserID == nil || *cat.UserID != userID {
		// Indistinguishable from a missing category on purpose.
		return core.ErrNotFound
	}

	if _, err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	slog.InfoContext(ctx, "Category deleted", applog.FieldCategoryID, id, applog.FieldUserID, userID)
	return nil
}
