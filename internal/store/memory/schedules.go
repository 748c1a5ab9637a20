package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

func (s *Store) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.doctors[doctorID]
	return ok, nil
}

func (s *Store) CreateSchedule(ctx context.Context, sc domain.DoctorSchedule) (domain.DoctorSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.scheduleForDay(sc.DoctorID, sc.DayOfWeek); err == nil {
		return domain.DoctorSchedule{}, store.ErrDuplicateSchedule
	}
	if sc.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.DoctorSchedule{}, err
		}
		sc.ID = id
	}
	now := s.stamp()
	sc.CreatedAt = now
	sc.UpdatedAt = now
	s.schedules[sc.ID] = sc
	return sc, nil
}

func (s *Store) GetSchedule(ctx context.Context, id uuid.UUID) (domain.DoctorSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return domain.DoctorSchedule{}, store.ErrNotFound
	}
	return sc, nil
}

func (s *Store) ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]domain.DoctorSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DoctorSchedule
	for _, sc := range s.schedules {
		if sc.DoctorID == doctorID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DayOfWeek < out[j].DayOfWeek
	})
	return out, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, sc domain.DoctorSchedule) (domain.DoctorSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schedules[sc.ID]
	if !ok {
		return domain.DoctorSchedule{}, store.ErrNotFound
	}
	if other, err := s.scheduleForDay(sc.DoctorID, sc.DayOfWeek); err == nil && other.ID != sc.ID {
		return domain.DoctorSchedule{}, store.ErrDuplicateSchedule
	}
	sc.CreatedAt = existing.CreatedAt
	sc.UpdatedAt = s.stamp()
	s.schedules[sc.ID] = sc
	return sc, nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}
