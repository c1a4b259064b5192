package services

import (
	"context"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/models"
)

const (
	MsgSavedAdded   = "Αποθηκεύτηκε"
	MsgSavedRemoved = "Αφαιρέθηκε από τα αποθηκευμένα"
	MsgInvalidKind  = "Μη έγκυρος τύπος"
)

type SavedStore interface {
	Save(ctx context.Context, userID int64, kind string, targetID int64) error
	Remove(ctx context.Context, userID int64, kind string, targetID int64) error
	IsSaved(ctx context.Context, userID int64, kind string, targetID int64) (bool, error)
	IDs(ctx context.Context, userID int64) (models.SavedIDs, error)
}

type SavedService struct {
	SavedRepo   SavedStore
	ServiceRepo interface {
		ListServicesByIDs(ctx context.Context, ids []int64) ([]models.Service, error)
		Exists(ctx context.Context, id int64) (bool, error)
	}
	ProfileRepo interface {
		ListByIDs(ctx context.Context, ids []int64) ([]models.Profile, error)
		Exists(ctx context.Context, id int64) (bool, error)
	}
	Cache cache.Store
}

func (s *SavedService) exists(ctx context.Context, kind string, id int64) error {
	var (
		ok  bool
		err error
	)
	switch kind {
	case models.SavedKindService:
		ok, err = s.ServiceRepo.Exists(ctx, id)
	case models.SavedKindProfile:
		ok, err = s.ProfileRepo.Exists(ctx, id)
	default:
		return apperr.Validation(map[string]string{"kind": MsgInvalidKind})
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.NotFound(MsgTargetNotFound)
	}
	return nil
}

// Save is idempotent.
func (s *SavedService) Save(ctx context.Context, userID int64, kind string, id int64) error {
	if err := s.exists(ctx, kind, id); err != nil {
		return err
	}
	if err := s.SavedRepo.Save(ctx, userID, kind, id); err != nil {
		return apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.SavedTag(userID))
	return nil
}

func (s *SavedService) Remove(ctx context.Context, userID int64, kind string, id int64) error {
	if kind != models.SavedKindService && kind != models.SavedKindProfile {
		return apperr.Validation(map[string]string{"kind": MsgInvalidKind})
	}
	if err := s.SavedRepo.Remove(ctx, userID, kind, id); err != nil {
		return apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.SavedTag(userID))
	return nil
}

func (s *SavedService) IsSaved(ctx context.Context, userID int64, kind string, id int64) (bool, error) {
	ok, err := s.SavedRepo.IsSaved(ctx, userID, kind, id)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return ok, nil
}

func (s *SavedService) IDs(ctx context.Context, userID int64) (models.SavedIDs, error) {
	key := cache.BuildCacheKey("saved", map[string]any{"user": userID})
	ids, err := cache.Remember(ctx, s.Cache, key, cache.TTLLong, []string{cache.SavedTag(userID)}, func(ctx context.Context) (models.SavedIDs, error) {
		return s.SavedRepo.IDs(ctx, userID)
	})
	if err != nil {
		return models.SavedIDs{}, apperr.Internal(err)
	}
	if ids.Services == nil {
		ids.Services = []int64{}
	}
	if ids.Profiles == nil {
		ids.Profiles = []int64{}
	}
	return ids, nil
}

// List loads the saved services and profiles. Services that are no longer
// published are left out.
func (s *SavedService) List(ctx context.Context, userID int64) (models.SavedList, error) {
	ids, err := s.IDs(ctx, userID)
	if err != nil {
		return models.SavedList{}, err
	}
	out := models.SavedList{Services: []models.Service{}, Profiles: []models.Profile{}}

	if len(ids.Services) > 0 {
		items, err := s.ServiceRepo.ListServicesByIDs(ctx, ids.Services)
		if err != nil {
			return models.SavedList{}, apperr.Internal(err)
		}
		for _, svc := range items {
			if svc.Status != models.ServiceStatusPublished {
				continue
			}
			svc.Saved = true
			out.Services = append(out.Services, withPrice(svc))
		}
	}
	if len(ids.Profiles) > 0 {
		items, err := s.ProfileRepo.ListByIDs(ctx, ids.Profiles)
		if err != nil {
			return models.SavedList{}, apperr.Internal(err)
		}
		for _, p := range items {
			p.Saved = true
			out.Profiles = append(out.Profiles, p)
		}
	}
	return out, nil
}
